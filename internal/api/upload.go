package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/snarg/voxrelay/internal/transcribe"
)

const (
	fileField   = "file"
	promptField = "prompt"

	maxPromptBytes = 8 << 10
)

// ReadUpload streams a multipart/form-data body and returns the first "file"
// part plus the optional "prompt" field. Every other field, including
// "model", is read and discarded so callers cannot pick the billed model.
// All failures are transcribe.KindBadRequest.
func ReadUpload(r *http.Request) (*transcribe.Upload, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, transcribe.BadRequest("expected multipart/form-data request")
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, transcribe.BadRequest("invalid multipart body: " + err.Error())
	}

	up := &transcribe.Upload{}
	haveFile := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err)
		}

		switch part.FormName() {
		case fileField:
			if haveFile {
				// Single-file limit: later file parts are drained, not used.
				_, err = io.Copy(io.Discard, part)
				break
			}
			haveFile = true
			up.Filename = part.FileName()
			up.MIMEType = part.Header.Get("Content-Type")
			up.Data, err = io.ReadAll(part)
		case promptField:
			var b []byte
			b, err = io.ReadAll(io.LimitReader(part, maxPromptBytes+1))
			if err == nil && len(b) > maxPromptBytes {
				part.Close()
				return nil, transcribe.BadRequest("prompt exceeds " + strconv.Itoa(maxPromptBytes) + " bytes")
			}
			up.Prompt = strings.TrimSpace(string(b))
		default:
			_, err = io.Copy(io.Discard, part)
		}
		part.Close()
		if err != nil {
			return nil, readError(err)
		}
	}

	if len(up.Data) == 0 {
		return nil, transcribe.BadRequest("missing audio file")
	}
	return up, nil
}

func readError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return transcribe.BadRequest("upload exceeds " + strconv.FormatInt(tooBig.Limit, 10) + " bytes")
	}
	return transcribe.BadRequest("invalid multipart body: " + err.Error())
}
