// Package sign computes AWS Signature Version 2 request headers.
//
// GroundStore signs its own object-store requests rather than routing them
// through an SDK client because the fetch layer controls the exact retry and
// range semantics of each attempt. Only SigV2 is implemented; the object
// stores GroundStore talks to accept it for both GET and PUT.
package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/groundstore/groundstore/internal/creds"
	"github.com/groundstore/groundstore/internal/timelib"
)

// octetStream is the content type sent with every signed PUT.
const octetStream = "application/octet-stream"

// Date returns the current UTC time formatted as YYYYMMDDTHHMMSSZ, the
// date format used in SigV2 string-to-sign and Date headers.
func Date() string {
	now := timelib.GmtNow()
	return fmt.Sprintf("%04d%02d%02dT%02d%02d%02dZ",
		now.Year, now.Month, now.Day, now.Hour, now.Minute, now.Second)
}

// ReadHeaders builds the headers for a SigV2 GET of /<bucket>/<key>.
// With an unprovided credential only the Date header is emitted and the
// request proceeds anonymously.
func ReadHeaders(bucket, key string, cred creds.Credential) http.Header {
	date := Date()

	h := http.Header{}
	h.Set("Date", date)

	if cred.Provided {
		tokenLine := "x-amz-security-token:" + cred.SessionToken
		h.Set("x-amz-security-token", cred.SessionToken)

		stringToSign := fmt.Sprintf("GET\n\n\n%s\n%s\n/%s/%s", date, tokenLine, bucket, key)
		h.Set("Authorization", authorization(cred, stringToSign))
	}

	return h
}

// WriteHeaders builds the headers for a SigV2 PUT of /<bucket>/<key> with
// the given content length. Content-Length is set by the transport from the
// request; the header here only records the value and is not part of the
// string-to-sign.
func WriteHeaders(bucket, key string, cred creds.Credential, contentLength int64) http.Header {
	date := Date()

	h := http.Header{}
	h.Set("Date", date)
	h.Set("Content-Type", octetStream)
	h.Set("Content-Length", fmt.Sprintf("%d", contentLength))

	if cred.Provided {
		tokenLine := "x-amz-security-token:" + cred.SessionToken
		h.Set("x-amz-security-token", cred.SessionToken)

		stringToSign := fmt.Sprintf("PUT\n\n%s\n%s\n%s\n/%s/%s", octetStream, date, tokenLine, bucket, key)
		h.Set("Authorization", authorization(cred, stringToSign))
	}

	return h
}

// authorization computes the "AWS <access-key-id>:<signature>" header value
// for a string-to-sign. The signature is base64(HMAC-SHA1(secret, sts)).
func authorization(cred creds.Credential, stringToSign string) string {
	mac := hmac.New(sha1.New, []byte(cred.SecretAccessKey))
	mac.Write([]byte(stringToSign))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("AWS %s:%s", cred.AccessKeyID, sig)
}
