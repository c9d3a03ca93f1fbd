// Package dto provides data transfer objects for the stub's HTTP surface.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/protect/internal/validation"
)

// ProtectRequest contains the parameters for protecting a value.
type ProtectRequest struct {
	ProtectionPolicyName string `json:"protection_policy_name"`
	Data                 string `json:"data"` // May be empty; an empty payload is legal.
}

// Validate checks if the protect request is valid.
func (r *ProtectRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProtectionPolicyName,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
	)
}

// RevealRequest contains the parameters for revealing a protected value.
// The data field holds the previously protected value.
type RevealRequest struct {
	ProtectionPolicyName string `json:"protection_policy_name"`
	Data                 string `json:"data"`
}

// Validate checks if the reveal request is valid.
func (r *RevealRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ProtectionPolicyName,
			validation.Required,
			customValidation.NotBlank,
			validation.Length(1, 255),
		),
	)
}
