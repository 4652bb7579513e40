package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"nearby_server/utils"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every payload check; it is safe for concurrent use.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = validate.RegisterValidation("macaddr", validateMAC)
}

// validateMAC accepts only the normalized XX:XX:XX:XX:XX:XX form; callers normalize first.
func validateMAC(fl validator.FieldLevel) bool {
	return utils.IsMAC(fl.Field().String())
}

type gpsFields struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type networkFields struct {
	NetworkID string `json:"networkId" validate:"required,macaddr"`
}

type deviceFields struct {
	DeviceID string `json:"deviceId" validate:"required,macaddr"`
}

type scanFields struct {
	ObservedDeviceIDs []string `json:"observedDeviceIds" validate:"max=256,dive,macaddr"` // max is models.MaxScannedDevices
}

// checkStruct runs the validator and converts the first failure into a ValidationError.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ValidationError("invalid request: %v", err)
	}
	return ValidationError("%s", describeFieldError(verrs[0]))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s may hold at most %s entries", fe.Field(), fe.Param())
	case "macaddr":
		return fmt.Sprintf("%s must be a hardware address like AA:BB:CC:DD:EE:FF", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
