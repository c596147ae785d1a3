package signature

import (
	"crypto/sha256"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewVerifier(t *testing.T) {
	Convey("Given verifier construction", t, func() {
		Convey("When the secret is empty", func() {
			_, err := NewVerifier(nil, RawBody)
			So(errors.Is(err, ErrMissingSecret), ShouldBeTrue)
		})

		Convey("When the mode is unknown", func() {
			_, err := NewVerifier([]byte("s"), Mode(42))
			So(errors.Is(err, ErrUnknownMode), ShouldBeTrue)
		})

		Convey("When parsing mode names", func() {
			m, err := ParseMode("raw")
			So(err, ShouldBeNil)
			So(m, ShouldEqual, RawBody)
			m, err = ParseMode(" String ")
			So(err, ShouldBeNil)
			So(m, ShouldEqual, StringForm)
			_, err = ParseMode("md5")
			So(errors.Is(err, ErrUnknownMode), ShouldBeTrue)
		})
	})
}

func TestRawBodyVerification(t *testing.T) {
	Convey("Given a raw-body verifier", t, func() {
		v, err := NewVerifier([]byte("passwd-secret"), RawBody)
		So(err, ShouldBeNil)
		body := []byte(`{"zen":"hi"}`)

		Convey("Then signatures match a known vector", func() {
			So(v.Sign(body), ShouldEqual, "sha256=728d93caf2ce52963186fc45031a6ead6316ce6e52ad7920c0a8336660183738")
		})

		Convey("Then a freshly signed body verifies", func() {
			So(v.Verify(body, v.Sign(body)), ShouldBeNil)
		})

		Convey("Then flipping any single bit of the body is rejected", func() {
			sig := v.Sign(body)
			for i := range body {
				for bit := 0; bit < 8; bit++ {
					tampered := append([]byte(nil), body...)
					tampered[i] ^= 1 << bit
					So(errors.Is(v.Verify(tampered, sig), ErrInvalidSignature), ShouldBeTrue)
				}
			}
		})

		Convey("Then flipping any single bit of the signature is rejected", func() {
			sig := []byte(v.Sign(body))
			for i := range sig {
				tampered := append([]byte(nil), sig...)
				tampered[i] ^= 0x01
				So(errors.Is(v.Verify(body, string(tampered)), ErrInvalidSignature), ShouldBeTrue)
			}
		})

		Convey("Then a bare hex digest without prefix is rejected", func() {
			So(errors.Is(v.Verify(body, v.Sign(body)[len(RawBodyPrefix):]), ErrInvalidSignature), ShouldBeTrue)
		})

		Convey("Then missing body or signature is reported as missing credentials", func() {
			So(errors.Is(v.Verify(nil, "sha256=00"), ErrMissingCredentials), ShouldBeTrue)
			So(errors.Is(v.Verify(body, ""), ErrMissingCredentials), ShouldBeTrue)
		})

		Convey("Then VerifyJSON leaves the body untouched", func() {
			spaced := []byte("{ \"zen\" : \"hi\" }")
			So(v.VerifyJSON(spaced, v.Sign(spaced)), ShouldBeNil)
			So(errors.Is(v.VerifyJSON(spaced, v.Sign(body)), ErrInvalidSignature), ShouldBeTrue)
		})
	})
}

func TestStringFormVerification(t *testing.T) {
	Convey("Given a string-form verifier", t, func() {
		v, err := NewVerifier([]byte("api-secret"), StringForm)
		So(err, ShouldBeNil)
		body := []byte(`[["alice", 1500], ["bob", 1400]]`)
		const known = "7d098953262b597f5dbcce7f00c8a2dcbea22c26e3f51c78edc714472fb34d15"

		Convey("Then the signature covers the canonical form", func() {
			sig, err := v.SignJSON(body)
			So(err, ShouldBeNil)
			So(sig, ShouldEqual, known)
			So(v.VerifyJSON(body, known), ShouldBeNil)
		})

		Convey("Then whitespace differences do not matter", func() {
			So(v.VerifyJSON([]byte("[[\"alice\",1500],\n [\"bob\",1400]]"), known), ShouldBeNil)
		})

		Convey("Then a changed value is rejected", func() {
			err := v.VerifyJSON([]byte(`[["alice", 1501], ["bob", 1400]]`), known)
			So(errors.Is(err, ErrInvalidSignature), ShouldBeTrue)
		})

		Convey("Then a body that is not JSON is malformed", func() {
			err := v.VerifyJSON([]byte(`[["alice", 1500]`), known)
			So(errors.Is(err, ErrMalformedPayload), ShouldBeTrue)
		})
	})
}

func TestConstantTimeEqual(t *testing.T) {
	Convey("Given the constant-time comparison", t, func() {
		So(ConstantTimeEqual([]byte("abc"), []byte("abc")), ShouldBeTrue)
		So(ConstantTimeEqual(nil, []byte{}), ShouldBeTrue)
		So(ConstantTimeEqual([]byte("abc"), []byte("abd")), ShouldBeFalse)
		So(ConstantTimeEqual([]byte("abc"), []byte("abcd")), ShouldBeFalse)
		So(ConstantTimeEqual([]byte("abc"), []byte("ab")), ShouldBeFalse)

		Convey("When several positions differ", func() {
			var a, b [sha256.Size]byte
			b[0] = 0x01
			b[sha256.Size-1] = 0x80

			Convey("Then every pair is folded into the accumulator", func() {
				So(xorAccumulate(&a, &b), ShouldEqual, byte(0x81))
				So(xorAccumulate(&a, &a), ShouldEqual, byte(0))
			})
		})
	})
}
