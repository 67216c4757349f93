/*
messages.go - User-facing message catalog

PURPOSE:
  Every toast and confirm-dialog string the editing flow can surface, in
  one place. The originals are Korean, matching the organization's UI
  language; they are literal UI copy, not log text (logs stay English).

  Row-scoped validation messages take the 1-based row number via the
  Row* formatting helpers.

SEE ALSO:
  - validate.go: produces the validation messages
  - editor/session.go: surfaces save/delete/copy outcomes
*/
package slip

import "fmt"

// Header and aggregate level messages.
const (
	MsgHeaderRequired      = "전표 정보가 없습니다."
	MsgDescriptionRequired = "적요를 입력하세요."
	MsgDetailRequired      = "전표 상세 내역을 입력하세요."
	MsgBalanceMismatch     = "차변 합계와 대변 합계가 일치하지 않습니다."
)

// Row-scoped validation messages. %d is the 1-based row number.
const (
	msgAccountRequired  = "%d행: 계정과목을 입력하세요."
	msgMgmt1Required    = "%d행: 관리항목1을 입력하세요."
	msgMgmt2Required    = "%d행: 관리항목2를 입력하세요."
	msgAmountRequired   = "%d행: 차변 또는 대변 금액을 입력하세요."
	msgCurrencyRequired = "%d행: 통화를 입력하세요."
	msgRateRequired     = "%d행: 환율을 입력하세요."
	msgHomeCurrencyRule = "%d행: 원화 라인은 환율 1, 발생금액과 환산금액이 동일해야 합니다."
	msgDeptRequired     = "%d행: 부서를 입력하세요."
	msgPartnerRequired  = "%d행: 거래처를 입력하세요."
)

// Operation outcome and confirmation messages.
const (
	MsgConfirmSave   = "전표를 저장하시겠습니까?"
	MsgConfirmDelete = "전표를 삭제하시겠습니까?"

	MsgSaveSuccess   = "저장되었습니다."
	MsgDeleteSuccess = "삭제되었습니다."
	MsgCopySuccess   = "복사되었습니다."

	MsgSaveFailed     = "저장 중 오류가 발생했습니다."
	MsgDeleteFailed   = "삭제 중 오류가 발생했습니다."
	MsgCopyFailed     = "복사 중 오류가 발생했습니다."
	MsgFetchFailed    = "조회 중 오류가 발생했습니다."
	MsgHeaderIDFailed = "전표번호 채번에 실패했습니다."
	MsgSerialFailed   = "일련번호 채번에 실패했습니다."
)

func RowAccountRequired(row int) string  { return fmt.Sprintf(msgAccountRequired, row) }
func RowMgmt1Required(row int) string    { return fmt.Sprintf(msgMgmt1Required, row) }
func RowMgmt2Required(row int) string    { return fmt.Sprintf(msgMgmt2Required, row) }
func RowAmountRequired(row int) string   { return fmt.Sprintf(msgAmountRequired, row) }
func RowCurrencyRequired(row int) string { return fmt.Sprintf(msgCurrencyRequired, row) }
func RowRateRequired(row int) string     { return fmt.Sprintf(msgRateRequired, row) }
func RowHomeCurrencyRule(row int) string { return fmt.Sprintf(msgHomeCurrencyRule, row) }
func RowDeptRequired(row int) string     { return fmt.Sprintf(msgDeptRequired, row) }
func RowPartnerRequired(row int) string  { return fmt.Sprintf(msgPartnerRequired, row) }
