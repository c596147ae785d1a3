package signature

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCanonical(t *testing.T) {
	Convey("Given JSON documents", t, func() {
		cases := []struct {
			in   string
			want string
		}{
			{`[["alice", 1500], ["bob", 1400]]`, `[['alice', 1500], ['bob', 1400]]`},
			{`{"b":1,"a":2}`, `{'b': 1, 'a': 2}`},
			{`[true,false,null]`, `[True, False, None]`},
			{`[]`, `[]`},
			{`{}`, `{}`},
			{`-0`, `0`},
			{`12345678901234567890123`, `12345678901234567890123`},
			{`[1.5, 1e16, 1e-5, 0.0001, -0.0, 100.0, 1e22, -2.5e-7]`, `[1.5, 1e+16, 1e-05, 0.0001, -0.0, 100.0, 1e+22, -2.5e-07]`},
			{`123456789012345678.0`, `1.2345678901234568e+17`},
			{`1e400`, `inf`},
			{`"it's"`, `"it's"`},
			{`"q\"'"`, `'q"\''`},
			{`"tab\tnl\n\\"`, `'tab\tnl\n\\'`},
			{`"\u00e9\u00a0\u0007\u2028\ud83d\ude00"`, "'é\\xa0\\x07\\u2028\U0001F600'"},
			{`{"a":1,"b":3,"a":2}`, `{'a': 2, 'b': 3}`},
			{`{ "a" : "x" , "b" : {"c": 1, "c": [2]} , "a" : "y" }`, `{'a': 'y', 'b': {'c': [2]}}`},
			{`"\ud800"`, `'\ud800'`},
			{`["\udc00x", "\ud83dz"]`, `['\udc00x', '\ud83dz']`},
			{`"\ud800\ud83d\ude00"`, "'\\ud800\U0001F600'"},
			{`{"\ud800": 1, "\ud801": 2}`, `{'\ud800': 1, '\ud801': 2}`},
		}

		for _, c := range cases {
			Convey("When rendering "+c.in, func() {
				got, err := Canonical([]byte(c.in))
				So(err, ShouldBeNil)
				So(string(got), ShouldEqual, c.want)
			})
		}

		Convey("When the document is broken or has trailing data", func() {
			for _, in := range []string{``, `[`, `{"a" 1}`, `[1] [2]`, `nope`} {
				_, err := Canonical([]byte(in))
				So(errors.Is(err, ErrMalformedPayload), ShouldBeTrue)
			}
		})
	})
}

func TestByteRepr(t *testing.T) {
	Convey("Given raw header bytes", t, func() {
		So(ByteRepr([]byte("sha256=abc")), ShouldEqual, `b'sha256=abc'`)
		So(ByteRepr([]byte("a'b\x00\xff\\")), ShouldEqual, `b"a'b\x00\xff\\"`)
		So(ByteRepr([]byte(`say "hi" it's`)), ShouldEqual, `b'say "hi" it\'s'`)
		So(ByteRepr(nil), ShouldEqual, `b''`)
	})
}
