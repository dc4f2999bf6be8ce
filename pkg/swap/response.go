package swap

import "strconv"

// ResponseStatus is the explicit outcome byte of a response envelope
type ResponseStatus byte

const (
	ResponseFailure ResponseStatus = 0
	ResponseSuccess ResponseStatus = 1
)

// Response is the envelope a remote chain sends back for a step request:
// status(1) | data. A zero-length data section is a valid success.
type Response struct {
	Status ResponseStatus
	Data   []byte
}

// Success reports whether the remote side executed the step
func (r Response) Success() bool {
	return r.Status == ResponseSuccess
}

// Encode serializes the envelope
func (r Response) Encode() []byte {
	out := make([]byte, 0, 1+len(r.Data))
	out = append(out, byte(r.Status))
	return append(out, r.Data...)
}

// DecodeResponse parses an envelope
func DecodeResponse(b []byte) (Response, error) {
	if len(b) == 0 {
		return Response{}, &DecodeError{Reason: "empty response envelope"}
	}

	status := ResponseStatus(b[0])
	if status != ResponseSuccess && status != ResponseFailure {
		return Response{}, &DecodeError{Reason: "unknown response status " + strconv.Itoa(int(b[0]))}
	}

	return Response{Status: status, Data: append([]byte(nil), b[1:]...)}, nil
}

// LegacyResponse interprets a bare payload where emptiness is the only
// failure signal
func LegacyResponse(payload []byte) Response {
	if len(payload) == 0 {
		return Response{Status: ResponseFailure}
	}
	return Response{Status: ResponseSuccess, Data: append([]byte(nil), payload...)}
}
