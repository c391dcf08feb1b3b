// Package media converts raw attachments into the messaging gateway's media object.
package media

import "encoding/base64"

// Object is the media payload accepted by the gateway's /send-media endpoint.
type Object struct {
	Data     string `json:"data"`
	Mimetype string `json:"mimetype"`
	Filename string `json:"filename"`
}

// Encode returns data as a standard base64 media object.
func Encode(data []byte, mimetype, filename string) Object {
	return Object{
		Data:     base64.StdEncoding.EncodeToString(data),
		Mimetype: mimetype,
		Filename: filename,
	}
}
