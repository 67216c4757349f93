/*
defaults.go - Declarative field defaulting

PURPOSE:
  A dozen optional header/detail fields follow the same coalescing rule
  on save: existing value, else a named default, else empty string. The
  rule lives in ONE table applied uniformly by the assembler, instead of
  being repeated ad hoc per field.

SEE ALSO:
  - assemble.go: applies the table
*/
package slip

// Field names for the defaulting table.
const (
	FieldOfficeCode      = "office_code"
	FieldDeptCode        = "dept_code"
	FieldSlipType        = "slip_type"
	FieldSlipCategory    = "slip_category"
	FieldCurrencyUnit    = "currency_unit"
	FieldRateType        = "rate_type"
	FieldEvidenceType    = "evidence_type"
	FieldBookkeepingCode = "bookkeeping_code"
	FieldReferenceNo     = "reference_no"
	FieldPartnerCode     = "partner_code"
	FieldMgmtOption      = "mgmt_option"
	FieldMgmtType        = "mgmt_type"
)

// DefaultTable maps field names to the value substituted when the
// in-memory value is blank. Unknown fields coalesce to "".
type DefaultTable map[string]string

// Coalesce returns value if non-empty, else the field's default, else "".
func (t DefaultTable) Coalesce(field, value string) string {
	if value != "" {
		return value
	}
	return t[field]
}

// StandardDefaults are the organization-wide fallbacks.
var StandardDefaults = DefaultTable{
	FieldOfficeCode:      "1000",
	FieldDeptCode:        "000000",
	FieldSlipType:        "GE",
	FieldSlipCategory:    "01",
	FieldCurrencyUnit:    HomeCurrency,
	FieldRateType:        "01",
	FieldEvidenceType:    "01",
	FieldBookkeepingCode: "00",
	FieldReferenceNo:     "",
	FieldPartnerCode:     "",
	FieldMgmtOption:      "N",
	FieldMgmtType:        MgmtTypeExempt,
}
