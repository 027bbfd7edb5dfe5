package store

// convert.go maps core scalars to PostgreSQL types and back.
//
// All toPg* functions return pgtype values with Valid=false for null or
// unconvertible input, so the database stores NULL.

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/ArticleImport/internal/core"
)

// toPgText converts a scalar to pgtype.Text.
// Returns invalid if the value is null or only whitespace.
func toPgText(v core.Scalar) pgtype.Text {
	s := strings.TrimSpace(v.Text())
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgNumeric converts a scalar to pgtype.Numeric using the number transform,
// so "150.50 INR" is stored as 150.50.
func toPgNumeric(v core.Scalar) pgtype.Numeric {
	f, ok := core.ApplyTransform(v, core.TransformNumber).Float()
	if !ok {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(strconv.FormatFloat(f, 'f', -1, 64)); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// toPgInt4 converts a scalar to pgtype.Int4, truncating fractions.
func toPgInt4(v core.Scalar) pgtype.Int4 {
	f, ok := core.ApplyTransform(v, core.TransformNumber).Float()
	if !ok || f > math.MaxInt32 || f < math.MinInt32 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(math.Trunc(f)), Valid: true}
}

// toPgBool converts a scalar to pgtype.Bool.
func toPgBool(v core.Scalar) pgtype.Bool {
	if v.IsBlank() {
		return pgtype.Bool{Valid: false}
	}
	if v.Kind == core.ScalarBool {
		return pgtype.Bool{Bool: v.Bool, Valid: true}
	}
	b := core.ApplyTransform(v, core.TransformBoolean)
	return pgtype.Bool{Bool: b.Bool, Valid: true}
}

// toPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// pgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// columnValue converts the record value for a target field to the
// pgtype matching its column.
func columnValue(field string, v core.Scalar) any {
	switch field {
	case core.FieldBaseRate, core.FieldTaxRate:
		return toPgNumeric(v)
	case core.FieldMinQuantity:
		return toPgInt4(v)
	case core.FieldIsFragile, core.FieldRequiresSpecialHandling:
		return toPgBool(v)
	case core.FieldBranchID:
		return toPgUUID(v.Text())
	default:
		return toPgText(v)
	}
}
