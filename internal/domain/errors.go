package domain

import "errors"

var (
	errTemplateMissingID                    = errors.New("template: missing id")
	errTemplateContainerModeMissingBlock     = errors.New("template: execution mode container requires a container block")
	errTemplateNativeModeMissingExecutable   = errors.New("template: execution mode native requires an executable")
)
