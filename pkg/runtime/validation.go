package runtime

import (
	"emssimulate/pkg/resolver"
	"emssimulate/pkg/runtime/constant"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

type ValidateNameFunc func(name string) error

func Validate(name string, nameFn ValidateNameFunc) field.ErrorList {
	return ValidateObjectMeta(name, nameFn)
}

func ValidateObjectMeta(name string, nameFn ValidateNameFunc) field.ErrorList {
	var allErrs field.ErrorList
	if len(name) == 0 {
		allErrs = append(allErrs, field.Required(field.NewPath("name"), ""))
	} else if nameFn != nil {
		if err := nameFn(name); err != nil {
			allErrs = append(allErrs, field.Invalid(field.NewPath("name"), name, err.Error()))
		}
	}
	return allErrs
}

func ValidateChannel(ch *Channel) field.ErrorList {
	allErrs := ValidateObjectMeta(ch.GetName(), nil)
	if _, ok := constant.ProtocolTypeToString[ch.ProtocolType]; !ok {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("protocolType"), ch.ProtocolType, protocolTypeNames()))
	}
	return allErrs
}

// ValidatePointRecord checks a record before it is turned into a point of the given family.
func ValidatePointRecord(record *PointRecord, family constant.ProtocolFamily, path *field.Path) field.ErrorList {
	var allErrs field.ErrorList
	if len(record.Code) == 0 {
		allErrs = append(allErrs, field.Required(path.Child("code"), ""))
	}
	if _, ok := constant.PointKindToString[record.Kind]; !ok {
		allErrs = append(allErrs, field.Invalid(path.Child("kind"), record.Kind, "unknown point kind"))
	}
	if record.SlaveID < 0 || record.SlaveID > 255 {
		allErrs = append(allErrs, field.Invalid(path.Child("slaveId"), record.SlaveID, "must be between 0 and 255"))
	}
	if len(record.Address) == 0 {
		allErrs = append(allErrs, field.Required(path.Child("address"), ""))
	} else if _, err := resolver.Resolve(family, record.Address); err != nil {
		allErrs = append(allErrs, field.Invalid(path.Child("address"), record.Address, err.Error()))
	}
	if record.Kind == constant.Control {
		if _, ok := constant.CommandTypeToString[record.CommandType]; !ok {
			allErrs = append(allErrs, field.Invalid(path.Child("commandType"), record.CommandType, "unknown command type"))
		}
	}
	return allErrs
}

func protocolTypeNames() []string {
	names := make([]string, 0, len(constant.ProtocolTypeToString))
	for _, s := range constant.ProtocolTypeToString {
		names = append(names, s)
	}
	return names
}
