/*
Package slip provides the core domain model for accounting slips.

PURPOSE:
  This package contains the types and algorithms for ledger-slip editing:
  the header/detail aggregate, the save validator, the defaulting table,
  and the transaction assembler. It has no knowledge of HTTP or storage -
  those live in api/, apiclient/ and store/sqlite/.

KEY CONCEPTS IN THIS FILE (types.go):
  - Header: one slip's header record, identified by (office, department,
    date, serial) once a serial has been issued
  - DetailLine: one debit-or-credit line of a slip
  - RowStatus: how a record should be applied on save (Created/Updated/Deleted)
  - DrCr: the debit/credit discriminator derived from the raw amounts

DESIGN PRINCIPLES:
  1. Precision: amounts and rates are decimal.Decimal, never float64.
     Parsing from wire strings happens exactly once, at the DTO edge.
  2. Value semantics: the assembler copies the aggregate; callers keep
     their in-memory state untouched until a save succeeds.
  3. The home currency (KRW) always carries exchange rate 1 and equal
     raw/converted amounts.

SEE ALSO:
  - validate.go: save validation rules
  - assemble.go: save-payload assembly
  - defaults.go: declarative field defaulting
*/
package slip

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS AND ENUMS
// =============================================================================

// HeaderID is the surrogate key for a slip header, issued by the backend
// before the first save of a new slip.
type HeaderID string

// RowStatus tells the backend how to apply a record on save.
type RowStatus string

const (
	RowCreated RowStatus = "C"
	RowUpdated RowStatus = "U"
	RowDeleted RowStatus = "D"
)

// DrCr discriminates debit lines from credit lines.
// Derived: raw debit amount > 0 => Debit, raw credit amount > 0 => Credit.
type DrCr string

const (
	Debit  DrCr = "D"
	Credit DrCr = "C"
	NoSide DrCr = ""
)

// HomeCurrency is the organization's base bookkeeping currency.
// Home-currency lines must carry exchange rate 1 and equal raw/converted amounts.
const HomeCurrency = "KRW"

// =============================================================================
// MANAGEMENT ITEMS
// =============================================================================

// Management-item slot sentinels. A slot with option flag "Y" requires a
// free-text value unless its type is the exempt code "00".
const (
	MgmtOptionUsed = "Y"
	MgmtTypeExempt = "00"
)

// ManagementItem is one of the two optional classification slots on a
// detail line (cost center, project code and the like).
type ManagementItem struct {
	Option string // "Y" when the slot is in use
	Type   string // item category; "00" requires no value
	Value  string // free text, required when Option=Y and Type!="00"
}

// Required reports whether this slot demands a non-empty Value.
func (m ManagementItem) Required() bool {
	return m.Option == MgmtOptionUsed && m.Type != MgmtTypeExempt
}

// =============================================================================
// HEADER - One slip's header record
// =============================================================================

// Header is one accounting slip's header. Before a serial number is issued
// the header is a draft with no identity; afterwards the identity is the
// quadruple (office, department, date, serial).
type Header struct {
	ID         HeaderID
	OfficeCode string
	DeptCode   string
	SlipDate   time.Time // day granularity, UTC
	SerialNo   int       // assigned once, per (office, date)

	SlipType     string
	SlipCategory string
	Description  string // required before save
	CurrencyUnit string
	RateType     string
	ExchangeRate decimal.Decimal

	EvidenceType    string
	BookkeepingCode string
	ReferenceNo     string

	RowStatus RowStatus

	// Audit fields, stamped at assembly time
	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasIdentity reports whether the backend has issued this header's id.
func (h Header) HasIdentity() bool { return h.ID != "" }

// =============================================================================
// DETAIL LINE - One debit-or-credit line
// =============================================================================

type DetailLine struct {
	HeaderID HeaderID
	LineSeq  int // 1-based, assigned at assembly time, order = list order

	AccountCode  string
	CurrencyCode string
	ExchangeRate decimal.Decimal

	DebitAmount     decimal.Decimal
	CreditAmount    decimal.Decimal
	OccurredAmount  decimal.Decimal // the nonzero raw amount
	ConvertedAmount decimal.Decimal // occurred / exchange rate

	Side        DrCr
	DeptCode    string
	PartnerCode string

	Mgmt1  ManagementItem
	Mgmt2  ManagementItem
	Remark string

	RowStatus RowStatus

	CreatedBy string
	UpdatedBy string
}

// RawAmount returns the nonzero side's raw amount (debit wins when both set).
func (l DetailLine) RawAmount() decimal.Decimal {
	if l.DebitAmount.IsPositive() {
		return l.DebitAmount
	}
	return l.CreditAmount
}

// DeriveSide returns the debit/credit discriminator from the raw amounts.
func (l DetailLine) DeriveSide() DrCr {
	switch {
	case l.DebitAmount.IsPositive():
		return Debit
	case l.CreditAmount.IsPositive():
		return Credit
	default:
		return NoSide
	}
}

// =============================================================================
// SERVER-SIDE VOCABULARY - Shared by editor, api and store
// =============================================================================

// SearchParams filters a slip-header list query.
type SearchParams struct {
	OfficeCode string
	DeptCode   string
	DateFrom   time.Time
	DateTo     time.Time
}

// SerialRequest asks the backend for the next serial of an (office, date) pair.
type SerialRequest struct {
	OfficeCode string
	DeptCode   string
	SlipDate   time.Time
}

// SerialResult carries the issued serial plus the backend-corrected
// office/department/date, which are authoritative and overwrite the
// client's in-memory header fields.
type SerialResult struct {
	SerialNo   int
	OfficeCode string
	DeptCode   string
	SlipDate   time.Time
}

// SaveRequest is one atomic save submission: the header and the full
// detail set, with every computed and defaulted field filled in.
type SaveRequest struct {
	Header  Header
	Details []DetailLine
}
