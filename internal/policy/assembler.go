package policy

import (
	"github.com/cuongbtq/prompt-gateway/internal/domain"
)

const (
	// ProviderErrorCode is used when a failed result carries no error of its own
	ProviderErrorCode    = "provider_error"
	providerErrorMessage = "Provider returned an error."
)

// SimpleResponseAssembler maps a provider result onto a canonical response
type SimpleResponseAssembler struct{}

// NewSimpleResponseAssembler creates the assembler
func NewSimpleResponseAssembler() *SimpleResponseAssembler {
	return &SimpleResponseAssembler{}
}

// Assemble builds the canonical response for result
func (SimpleResponseAssembler) Assemble(result domain.ProviderResultEvent) domain.CanonicalResponse {
	resp := domain.CanonicalResponse{
		Provider:  result.Provider,
		Model:     result.Model,
		OutputRef: result.OutputRef,
		Usage:     result.Usage,
		Cost:      result.Cost,
	}

	if !result.IsSuccess {
		if result.Error != nil {
			e := *result.Error
			resp.Error = &e
		} else {
			resp.Error = &domain.CanonicalError{Code: ProviderErrorCode, Message: providerErrorMessage}
		}
	}

	return resp
}
