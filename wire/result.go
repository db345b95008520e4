package wire

// Result is the outcome code attached to server responses.
type Result uint64

// Result values the engine reacts to. The full range is much larger; codes
// outside this list are passed to the caller verbatim.
const (
	ResultInvalid                  Result = 0
	ResultOK                       Result = 1
	ResultFail                     Result = 2
	ResultNoConnection             Result = 3
	ResultInvalidPassword          Result = 5
	ResultLoggedInElsewhere        Result = 6
	ResultBusy                     Result = 10
	ResultAccessDenied             Result = 15
	ResultTimeout                  Result = 16
	ResultServiceUnavailable       Result = 20
	ResultLogonSessionReplaced     Result = 34
	ResultTryAnotherServer         Result = 48
	ResultAccountLogonDenied       Result = 63
	ResultRateLimitExceeded        Result = 84
	ResultLoginDeniedNeedTwoFactor Result = 85
)

// OK reports whether the result signals success.
func (r Result) OK() bool {
	return r == ResultOK
}

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultInvalid:
		return "Invalid"
	case ResultOK:
		return "OK"
	case ResultFail:
		return "Fail"
	case ResultNoConnection:
		return "NoConnection"
	case ResultInvalidPassword:
		return "InvalidPassword"
	case ResultLoggedInElsewhere:
		return "LoggedInElsewhere"
	case ResultBusy:
		return "Busy"
	case ResultAccessDenied:
		return "AccessDenied"
	case ResultTimeout:
		return "Timeout"
	case ResultServiceUnavailable:
		return "ServiceUnavailable"
	case ResultLogonSessionReplaced:
		return "LogonSessionReplaced"
	case ResultTryAnotherServer:
		return "TryAnotherServer"
	case ResultAccountLogonDenied:
		return "AccountLogonDenied"
	case ResultRateLimitExceeded:
		return "RateLimitExceeded"
	case ResultLoginDeniedNeedTwoFactor:
		return "LoginDeniedNeedTwoFactor"
	default:
		return "Unknown"
	}
}
