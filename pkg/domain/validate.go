package domain

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var enclaveIdPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,29}$`)
var partitionIdPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// NewValidator builds a validator.Validate with nclav's domain identifier
// rules registered: EnclaveId is lowercase alphanumeric and hyphens, at
// most 30 characters; PartitionId follows the same charset, at most 63.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("domain: registering validator tag %q: %v", tag, err))
		}
	}

	must("nclav_enclave_id", func(fl validator.FieldLevel) bool {
		return enclaveIdPattern.MatchString(fl.Field().String())
	})
	must("nclav_partition_id", func(fl validator.FieldLevel) bool {
		return partitionIdPattern.MatchString(fl.Field().String())
	})

	return v
}

// ValidEnclaveId reports whether id satisfies the enclave identifier
// charset and length rule on its own, outside of struct validation.
func ValidEnclaveId(id EnclaveId) bool {
	return enclaveIdPattern.MatchString(string(id))
}

// ValidPartitionId reports whether id satisfies the partition identifier
// charset and length rule on its own, outside of struct validation.
func ValidPartitionId(id PartitionId) bool {
	return partitionIdPattern.MatchString(string(id))
}
