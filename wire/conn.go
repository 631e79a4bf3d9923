package wire

import "io"

// SendQuery writes q as one length-prefixed frame (the
// client's half of the exchange).
func SendQuery(w io.Writer, q Query) error {
	b, err := EncodeQuery(q)
	if err != nil {
		return err
	}
	return writeFrame(w, b)
}

// ReceiveQuery reads one length-prefixed query frame.
func ReceiveQuery(r io.Reader) (Query, error) {
	b, err := readFrame(r)
	if err != nil {
		return Query{}, err
	}
	return DecodeQuery(b)
}

// SendResponse writes resp as one length-prefixed frame (the
// server's half of the exchange).
func SendResponse(w io.Writer, resp Response) error {
	b, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	return writeFrame(w, b)
}

// ReceiveResponse reads one length-prefixed response frame.
func ReceiveResponse(r io.Reader) (Response, error) {
	b, err := readFrame(r)
	if err != nil {
		return Response{}, err
	}
	return DecodeResponse(b)
}
