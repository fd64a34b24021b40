package signature

import "testing"

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("app-secret")
	body := []byte(`{"entry":[{"id":"1"}]}`)

	if !v.Verify(body, v.Sign(body)) {
		t.Fatal("signed payload must verify")
	}
}

func TestVerifyWithoutPrefix(t *testing.T) {
	v := NewVerifier("app-secret")
	body := []byte("payload")
	signed := v.Sign(body)

	if !v.Verify(body, signed[len(Prefix):]) {
		t.Fatal("bare hex signature must verify")
	}
}

func TestVerifyFailures(t *testing.T) {
	v := NewVerifier("app-secret")
	body := []byte("payload")
	signed := v.Sign(body)

	cases := []struct {
		name   string
		body   []byte
		header string
		v      *Verifier
	}{
		{name: "empty header", body: body, header: "", v: v},
		{name: "unconfigured secret", body: body, header: signed, v: NewVerifier("")},
		{name: "wrong secret", body: body, header: NewVerifier("other").Sign(body), v: v},
		{name: "flipped byte", body: []byte("payloae"), header: signed, v: v},
		{name: "not hex", body: body, header: "sha256=zzzz", v: v},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.v.Verify(tc.body, tc.header) {
				t.Fatal("expected verification failure")
			}
		})
	}
}
