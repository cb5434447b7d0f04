package turnkey

import "fmt"

const (
	ActivityTypeSignRawPayload = "ACTIVITY_TYPE_SIGN_RAW_PAYLOAD_V2"
	ActivityStatusCompleted    = "ACTIVITY_STATUS_COMPLETED"

	PayloadEncodingHexadecimal = "PAYLOAD_ENCODING_HEXADECIMAL"

	// HashFunctionNoOp signs the payload as an already computed digest.
	HashFunctionNoOp = "HASH_FUNCTION_NO_OP"
	// HashFunctionNotApplicable is required for ed25519 keys, which hash internally.
	HashFunctionNotApplicable = "HASH_FUNCTION_NOT_APPLICABLE"

	stampScheme = "SIGNATURE_SCHEME_TK_API_P256"
)

type whoamiRequest struct {
	OrganizationId string `json:"organizationId"`
}

type WhoamiResponse struct {
	OrganizationId   string `json:"organizationId"`
	OrganizationName string `json:"organizationName"`
	UserId           string `json:"userId"`
	Username         string `json:"username"`
}

type signRawPayloadParameters struct {
	SignWith     string `json:"signWith"`
	Payload      string `json:"payload"`
	Encoding     string `json:"encoding"`
	HashFunction string `json:"hashFunction"`
}

type signRawPayloadRequest struct {
	Type           string                   `json:"type"`
	TimestampMs    string                   `json:"timestampMs"`
	OrganizationId string                   `json:"organizationId"`
	Parameters     signRawPayloadParameters `json:"parameters"`
}

// SignRawPayloadResult holds hex signature components. V is only set for secp256k1 keys.
type SignRawPayloadResult struct {
	R string `json:"r"`
	S string `json:"s"`
	V string `json:"v"`
}

type activityResult struct {
	SignRawPayloadResult *SignRawPayloadResult `json:"signRawPayloadResult,omitempty"`
}

type activityFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type activity struct {
	Id      string           `json:"id"`
	Status  string           `json:"status"`
	Type    string           `json:"type"`
	Result  *activityResult  `json:"result,omitempty"`
	Failure *activityFailure `json:"failure,omitempty"`
}

type activityResponse struct {
	Activity *activity `json:"activity"`
}

// APIError is the error body returned by the Turnkey public API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("turnkey api error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// ActivityError is returned when an activity was accepted but did not complete.
type ActivityError struct {
	ActivityId string
	Status     string
	Message    string
}

func (e *ActivityError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("turnkey activity %s finished with status %s: %s", e.ActivityId, e.Status, e.Message)
	}
	return fmt.Sprintf("turnkey activity %s finished with status %s", e.ActivityId, e.Status)
}
