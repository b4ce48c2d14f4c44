package mondialrelay

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Param is one named SOAP argument. Order matters: the signature covers values in
// the sequence the web service documents for each action.
type Param struct {
	Name  string
	Value string
}

// Sign computes the Security argument: the upper-case hex MD5 of every parameter
// value concatenated in order, followed by the private key.
func Sign(params []Param, privateKey string) string {
	h := md5.New()
	for _, p := range params {
		h.Write([]byte(p.Value))
	}
	h.Write([]byte(privateKey))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil)))
}

func signed(params []Param, privateKey string) []Param {
	out := make([]Param, 0, len(params)+1)
	out = append(out, params...)
	return append(out, Param{Name: "Security", Value: Sign(params, privateKey)})
}
