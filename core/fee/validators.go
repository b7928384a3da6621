package fee

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// InitValidators lets validation tags such as `gte=0` apply to decimal amounts.
func InitValidators(validate *validator.Validate) {
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
