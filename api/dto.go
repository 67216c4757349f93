/*
dto.go - Wire types for the slip API

PURPOSE:
  Defines the JSON structures exchanged with clients. Amounts, rates and
  dates travel as strings (the grid front ends bind text fields); they
  are parsed into decimal.Decimal / time.Time exactly once, here, and
  never again downstream.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

SEE ALSO:
  - handlers.go: uses these types
  - slip/types.go: the domain model these map onto
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/slip-engine/slip"
)

const dateFormat = "2006-01-02"

// =============================================================================
// WIRE TYPES
// =============================================================================

// HeaderDTO represents a slip header on the wire.
type HeaderDTO struct {
	ID              string `json:"id"`
	OfficeCode      string `json:"office_code"`
	DeptCode        string `json:"dept_code"`
	SlipDate        string `json:"slip_date"`
	SerialNo        int    `json:"serial_no"`
	SlipType        string `json:"slip_type"`
	SlipCategory    string `json:"slip_category"`
	Description     string `json:"description"`
	CurrencyUnit    string `json:"currency_unit"`
	RateType        string `json:"rate_type"`
	ExchangeRate    string `json:"exchange_rate"`
	EvidenceType    string `json:"evidence_type,omitempty"`
	BookkeepingCode string `json:"bookkeeping_code,omitempty"`
	ReferenceNo     string `json:"reference_no,omitempty"`
	RowStatus       string `json:"row_status"`
	CreatedBy       string `json:"created_by,omitempty"`
	UpdatedBy       string `json:"updated_by,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// DetailDTO represents one detail line on the wire.
type DetailDTO struct {
	HeaderID        string `json:"header_id,omitempty"`
	LineSeq         int    `json:"line_seq"`
	AccountCode     string `json:"account_code"`
	CurrencyCode    string `json:"currency_code"`
	ExchangeRate    string `json:"exchange_rate"`
	DebitAmount     string `json:"debit_amount"`
	CreditAmount    string `json:"credit_amount"`
	OccurredAmount  string `json:"occurred_amount"`
	ConvertedAmount string `json:"converted_amount"`
	DrCr            string `json:"dr_cr"`
	DeptCode        string `json:"dept_code"`
	PartnerCode     string `json:"partner_code"`
	Mgmt1Option     string `json:"mgmt1_option,omitempty"`
	Mgmt1Type       string `json:"mgmt1_type,omitempty"`
	Mgmt1Value      string `json:"mgmt1_value,omitempty"`
	Mgmt2Option     string `json:"mgmt2_option,omitempty"`
	Mgmt2Type       string `json:"mgmt2_type,omitempty"`
	Mgmt2Value      string `json:"mgmt2_value,omitempty"`
	Remark          string `json:"remark,omitempty"`
	RowStatus       string `json:"row_status"`
}

// SaveSlipRequest is one atomic save submission.
type SaveSlipRequest struct {
	Header  HeaderDTO   `json:"header"`
	Details []DetailDTO `json:"details"`
}

// HeaderIDDTO is the response of the header-id issuance endpoint.
type HeaderIDDTO struct {
	HeaderID string `json:"header_id"`
}

// SerialRequestDTO asks for the next serial of an (office, date) pair.
type SerialRequestDTO struct {
	OfficeCode string `json:"office_code"`
	DeptCode   string `json:"dept_code"`
	SlipDate   string `json:"slip_date"`
}

// SerialDTO echoes the issued serial and the authoritative
// office/department/date values.
type SerialDTO struct {
	SerialNo   int    `json:"serial_no"`
	OfficeCode string `json:"office_code"`
	DeptCode   string `json:"dept_code"`
	SlipDate   string `json:"slip_date"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN <-> WIRE CONVERSION
// =============================================================================

func ToHeaderDTO(h slip.Header) HeaderDTO {
	dto := HeaderDTO{
		ID:              string(h.ID),
		OfficeCode:      h.OfficeCode,
		DeptCode:        h.DeptCode,
		SlipDate:        h.SlipDate.Format(dateFormat),
		SerialNo:        h.SerialNo,
		SlipType:        h.SlipType,
		SlipCategory:    h.SlipCategory,
		Description:     h.Description,
		CurrencyUnit:    h.CurrencyUnit,
		RateType:        h.RateType,
		ExchangeRate:    h.ExchangeRate.String(),
		EvidenceType:    h.EvidenceType,
		BookkeepingCode: h.BookkeepingCode,
		ReferenceNo:     h.ReferenceNo,
		RowStatus:       string(h.RowStatus),
		CreatedBy:       h.CreatedBy,
		UpdatedBy:       h.UpdatedBy,
	}
	if !h.CreatedAt.IsZero() {
		dto.CreatedAt = h.CreatedAt.Format(time.RFC3339)
	}
	if !h.UpdatedAt.IsZero() {
		dto.UpdatedAt = h.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func ToDetailDTO(l slip.DetailLine) DetailDTO {
	return DetailDTO{
		HeaderID:        string(l.HeaderID),
		LineSeq:         l.LineSeq,
		AccountCode:     l.AccountCode,
		CurrencyCode:    l.CurrencyCode,
		ExchangeRate:    l.ExchangeRate.String(),
		DebitAmount:     l.DebitAmount.String(),
		CreditAmount:    l.CreditAmount.String(),
		OccurredAmount:  l.OccurredAmount.String(),
		ConvertedAmount: l.ConvertedAmount.String(),
		DrCr:            string(l.Side),
		DeptCode:        l.DeptCode,
		PartnerCode:     l.PartnerCode,
		Mgmt1Option:     l.Mgmt1.Option,
		Mgmt1Type:       l.Mgmt1.Type,
		Mgmt1Value:      l.Mgmt1.Value,
		Mgmt2Option:     l.Mgmt2.Option,
		Mgmt2Type:       l.Mgmt2.Type,
		Mgmt2Value:      l.Mgmt2.Value,
		Remark:          l.Remark,
		RowStatus:       string(l.RowStatus),
	}
}

func ToDetailDTOs(lines []slip.DetailLine) []DetailDTO {
	dtos := make([]DetailDTO, len(lines))
	for i, l := range lines {
		dtos[i] = ToDetailDTO(l)
	}
	return dtos
}

// FromHeaderDTO parses the wire header into the domain model. This is
// the single point where header strings become typed values.
func FromHeaderDTO(dto HeaderDTO) (slip.Header, error) {
	h := slip.Header{
		ID:              slip.HeaderID(dto.ID),
		OfficeCode:      dto.OfficeCode,
		DeptCode:        dto.DeptCode,
		SerialNo:        dto.SerialNo,
		SlipType:        dto.SlipType,
		SlipCategory:    dto.SlipCategory,
		Description:     dto.Description,
		CurrencyUnit:    dto.CurrencyUnit,
		RateType:        dto.RateType,
		EvidenceType:    dto.EvidenceType,
		BookkeepingCode: dto.BookkeepingCode,
		ReferenceNo:     dto.ReferenceNo,
		RowStatus:       slip.RowStatus(dto.RowStatus),
		CreatedBy:       dto.CreatedBy,
		UpdatedBy:       dto.UpdatedBy,
	}

	var err error
	if h.SlipDate, err = parseDate(dto.SlipDate, "slip_date"); err != nil {
		return slip.Header{}, err
	}
	if h.ExchangeRate, err = parseAmount(dto.ExchangeRate, "exchange_rate"); err != nil {
		return slip.Header{}, err
	}
	if dto.CreatedAt != "" {
		if h.CreatedAt, err = time.Parse(time.RFC3339, dto.CreatedAt); err != nil {
			return slip.Header{}, fmt.Errorf("invalid created_at %q: %w", dto.CreatedAt, err)
		}
	}
	if dto.UpdatedAt != "" {
		if h.UpdatedAt, err = time.Parse(time.RFC3339, dto.UpdatedAt); err != nil {
			return slip.Header{}, fmt.Errorf("invalid updated_at %q: %w", dto.UpdatedAt, err)
		}
	}
	return h, nil
}

func FromDetailDTO(dto DetailDTO) (slip.DetailLine, error) {
	l := slip.DetailLine{
		HeaderID:     slip.HeaderID(dto.HeaderID),
		LineSeq:      dto.LineSeq,
		AccountCode:  dto.AccountCode,
		CurrencyCode: dto.CurrencyCode,
		Side:         slip.DrCr(dto.DrCr),
		DeptCode:     dto.DeptCode,
		PartnerCode:  dto.PartnerCode,
		Mgmt1:        slip.ManagementItem{Option: dto.Mgmt1Option, Type: dto.Mgmt1Type, Value: dto.Mgmt1Value},
		Mgmt2:        slip.ManagementItem{Option: dto.Mgmt2Option, Type: dto.Mgmt2Type, Value: dto.Mgmt2Value},
		Remark:       dto.Remark,
		RowStatus:    slip.RowStatus(dto.RowStatus),
	}

	var err error
	if l.ExchangeRate, err = parseAmount(dto.ExchangeRate, "exchange_rate"); err != nil {
		return slip.DetailLine{}, err
	}
	if l.DebitAmount, err = parseAmount(dto.DebitAmount, "debit_amount"); err != nil {
		return slip.DetailLine{}, err
	}
	if l.CreditAmount, err = parseAmount(dto.CreditAmount, "credit_amount"); err != nil {
		return slip.DetailLine{}, err
	}
	if l.OccurredAmount, err = parseAmount(dto.OccurredAmount, "occurred_amount"); err != nil {
		return slip.DetailLine{}, err
	}
	if l.ConvertedAmount, err = parseAmount(dto.ConvertedAmount, "converted_amount"); err != nil {
		return slip.DetailLine{}, err
	}
	return l, nil
}

// ToSaveSlipRequest serializes a domain save request for the wire.
// The apiclient package uses it; the server decodes the mirror image.
func ToSaveSlipRequest(req slip.SaveRequest) SaveSlipRequest {
	return SaveSlipRequest{
		Header:  ToHeaderDTO(req.Header),
		Details: ToDetailDTOs(req.Details),
	}
}

func FromSaveRequest(req SaveSlipRequest) (slip.SaveRequest, error) {
	h, err := FromHeaderDTO(req.Header)
	if err != nil {
		return slip.SaveRequest{}, err
	}
	details := make([]slip.DetailLine, len(req.Details))
	for i, d := range req.Details {
		line, err := FromDetailDTO(d)
		if err != nil {
			return slip.SaveRequest{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		details[i] = line
	}
	return slip.SaveRequest{Header: h, Details: details}, nil
}

// parseAmount parses a wire amount/rate string; blank means zero.
func parseAmount(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}

// parseDate parses a wire date string; blank means the zero time.
func parseDate(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return t, nil
}
