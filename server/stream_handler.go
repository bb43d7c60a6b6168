package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"SeekBeat/core/apperr"
	"SeekBeat/core/audio"
	"SeekBeat/core/stream"
	"SeekBeat/core/utils"
	"SeekBeat/logger"
)

const maxEditsBody = 64 << 10

type streamBody struct {
	Edits json.RawMessage `json:"edits"`
}

func parseStreamBody(r *http.Request) (audio.EditSpec, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEditsBody))
	if err != nil {
		return audio.EditSpec{}, apperr.Wrap(apperr.InvalidQuery, "Invalid request body", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return audio.EditSpec{}, nil
	}
	var body streamBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return audio.EditSpec{}, apperr.Wrap(apperr.InvalidQuery, "Invalid request body", err)
	}
	edits, err := audio.ParseEdits(body.Edits)
	if err != nil {
		return audio.EditSpec{}, apperr.Wrap(apperr.InvalidQuery, "Invalid edits", err)
	}
	return edits, nil
}

func attachment(title string) string {
	return fmt.Sprintf(`attachment; filename="%s.mp3"`, utils.SafeFilename(title, "audio"))
}

// StreamHandler GET 返回元数据或文件字节, POST 返回处理后的音频
func (h *APIHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	req := stream.Request{
		ID:         mux.Vars(r)["id"],
		Download:   r.Method == http.MethodPost,
		Range:      r.Header.Get("Range"),
		AccessCode: r.Header.Get("Access-Code"),
	}
	if req.Download {
		edits, err := parseStreamBody(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		req.Edits = edits
	}

	resp, err := h.streamer.Handle(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer resp.Close()

	switch resp.Kind {
	case stream.MetadataResponse:
		writeJSON(w, http.StatusOK, resp.Metadata)
	case stream.RangedResponse:
		h.writeRanged(w, resp, req.Download)
	case stream.TranscodedResponse:
		h.writeTranscoded(w, r, resp)
	}
}

func (h *APIHandler) writeRanged(w http.ResponseWriter, resp *stream.Response, download bool) {
	for k, v := range resp.Ranged.Header {
		w.Header()[k] = v
	}
	if download {
		w.Header().Set("Content-Disposition", attachment(resp.Title))
	}
	w.WriteHeader(resp.Ranged.Status)
	if _, err := io.Copy(w, resp.Ranged.Body); err != nil {
		logger.Debug("range copy aborted", logger.ErrorField(err))
	}
}

// writeTranscoded reads the first chunk before committing to a 200 so a
// transcoder that fails immediately still produces a JSON error.
func (h *APIHandler) writeTranscoded(w http.ResponseWriter, r *http.Request, resp *stream.Response) {
	head := make([]byte, audio.ChunkSize)
	n, err := io.ReadAtLeast(resp.Audio, head, 1)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", attachment(resp.Title))
	w.WriteHeader(http.StatusOK)
	if n > 0 {
		if _, err := w.Write(head[:n]); err != nil {
			return
		}
	}
	if errors.Is(err, io.EOF) {
		return
	}
	if _, err := resp.Audio.WriteTo(w); err != nil {
		// headers are gone; the client sees a truncated body
		logger.Warn("stream aborted",
			logger.String("title", resp.Title),
			logger.ErrorField(err))
	}
}
