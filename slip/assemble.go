/*
assemble.go - Save-payload assembly

PURPOSE:
  Produces the one wire-bound SaveRequest for a slip: header plus all
  detail lines, with every optional field coalesced to a safe default
  and every computed field filled in. Assembly is a pure function of its
  input - calling it twice on the same aggregate yields the same payload.

COMPUTED FIELDS:
  - Line sequence number: 1-based position in the final list
  - Debit/credit discriminator: from the raw amounts
  - Occurred amount: the nonzero raw amount
  - Converted amount: occurred / exchange rate
  - Row status: Created for a new aggregate, else Updated, on the header
    and on EVERY line (the whole detail set is resubmitted; lines do not
    track partial modification)
  - Audit fields: stamped with the acting user, unconditionally

SEE ALSO:
  - defaults.go: the coalescing table
  - editor/session.go: drives assembly during save/delete/copy
*/
package slip

import "time"

// AssembleInput is everything assembly depends on. Header and Details
// are copied; the caller's aggregate is never mutated.
type AssembleInput struct {
	Header  Header
	Details []DetailLine

	// IsNew marks an aggregate that has never been saved successfully.
	// Row status becomes Created instead of Updated.
	IsNew bool

	// ForceStatus overrides the derived row status on the header and
	// every line. Used by delete (Deleted) and copy (Created).
	ForceStatus RowStatus

	UserID   string
	Now      time.Time
	Defaults DefaultTable
}

// Assemble builds the save payload. It assumes Validate has passed;
// it still guards division by a zero exchange rate.
func Assemble(in AssembleInput) SaveRequest {
	defaults := in.Defaults
	if defaults == nil {
		defaults = StandardDefaults
	}

	status := RowUpdated
	if in.IsNew {
		status = RowCreated
	}
	if in.ForceStatus != "" {
		status = in.ForceStatus
	}

	h := in.Header
	h.OfficeCode = defaults.Coalesce(FieldOfficeCode, h.OfficeCode)
	h.DeptCode = defaults.Coalesce(FieldDeptCode, h.DeptCode)
	h.SlipType = defaults.Coalesce(FieldSlipType, h.SlipType)
	h.SlipCategory = defaults.Coalesce(FieldSlipCategory, h.SlipCategory)
	h.CurrencyUnit = defaults.Coalesce(FieldCurrencyUnit, h.CurrencyUnit)
	h.RateType = defaults.Coalesce(FieldRateType, h.RateType)
	h.EvidenceType = defaults.Coalesce(FieldEvidenceType, h.EvidenceType)
	h.BookkeepingCode = defaults.Coalesce(FieldBookkeepingCode, h.BookkeepingCode)
	h.ReferenceNo = defaults.Coalesce(FieldReferenceNo, h.ReferenceNo)
	if h.SlipDate.IsZero() {
		h.SlipDate = in.Now.UTC().Truncate(24 * time.Hour)
	}
	if h.ExchangeRate.IsZero() {
		h.ExchangeRate = one
	}
	h.RowStatus = status
	h.CreatedBy = in.UserID
	h.UpdatedBy = in.UserID
	if in.IsNew {
		h.CreatedAt = in.Now
	}
	h.UpdatedAt = in.Now

	details := make([]DetailLine, len(in.Details))
	for i, l := range in.Details {
		l.HeaderID = h.ID
		l.LineSeq = i + 1
		l.Side = l.DeriveSide()
		l.OccurredAmount = l.RawAmount()
		if l.ExchangeRate.IsPositive() {
			l.ConvertedAmount = l.OccurredAmount.Div(l.ExchangeRate)
		} else {
			l.ConvertedAmount = l.OccurredAmount
		}
		l.DeptCode = defaults.Coalesce(FieldDeptCode, l.DeptCode)
		l.PartnerCode = defaults.Coalesce(FieldPartnerCode, l.PartnerCode)
		l.Mgmt1.Option = defaults.Coalesce(FieldMgmtOption, l.Mgmt1.Option)
		l.Mgmt1.Type = defaults.Coalesce(FieldMgmtType, l.Mgmt1.Type)
		l.Mgmt2.Option = defaults.Coalesce(FieldMgmtOption, l.Mgmt2.Option)
		l.Mgmt2.Type = defaults.Coalesce(FieldMgmtType, l.Mgmt2.Type)
		l.RowStatus = status
		l.CreatedBy = in.UserID
		l.UpdatedBy = in.UserID
		details[i] = l
	}

	return SaveRequest{Header: h, Details: details}
}

// ClearIdentity strips the identity fields from a save request so the
// backend assigns a fresh header id and serial. Used by the copy flow.
func (r SaveRequest) ClearIdentity() SaveRequest {
	r.Header.ID = ""
	r.Header.SerialNo = 0
	for i := range r.Details {
		r.Details[i].HeaderID = ""
	}
	return r
}
