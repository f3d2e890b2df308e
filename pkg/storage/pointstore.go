package storage

import (
	"emssimulate/pkg/runtime"
	"emssimulate/pkg/runtime/constant"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
)

func errPointNotFound(code string) error {
	return errors.Wrapf(constant.ErrPointNotFound, "point %s", code)
}

func errDuplicateCode(code string) error {
	return errors.Wrapf(constant.ErrDuplicateCode, "point %s", code)
}

// checkBatch rejects codes repeated in records or taken elsewhere.
func checkBatch(records []*runtime.PointRecord, taken func(code string) bool) error {
	seen := sets.NewString()
	for _, r := range records {
		if seen.Has(r.Code) || taken(r.Code) {
			return errDuplicateCode(r.Code)
		}
		seen.Insert(r.Code)
	}
	return nil
}
