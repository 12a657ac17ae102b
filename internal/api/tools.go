package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/lexicon"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/observe"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/transcript"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

type synonymsRequest struct {
	Word string `json:"word"`
}

type synonymsResponse struct {
	Message  string   `json:"message"`
	Synonyms []string `json:"synonyms"`
}

type transcribeResponse struct {
	Transcript string               `json:"transcript"`
	Segments   []transcript.Segment `json:"segments"`
}

func (s *Server) handleSynonyms(w http.ResponseWriter, r *http.Request) {
	if s.synonyms == nil {
		writeError(w, http.StatusServiceUnavailable, "Synonym generation is not configured.")
		return
	}
	var req synonymsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, list, err := s.synonyms.Generate(r.Context(), req.Word)
	switch {
	case errors.Is(err, lexicon.ErrEmptyWord):
		writeError(w, http.StatusBadRequest, "word must not be empty")
		return
	case err != nil:
		observe.Logger(r.Context()).Error("synonyms failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error generating synonyms: "+err.Error())
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, synonymsResponse{Message: raw, Synonyms: list})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		writeError(w, http.StatusServiceUnavailable, "Transcription is not configured.")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio exceeds 25 MB")
			return
		}
		writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}

	mime, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
	tr, err := s.transcriber.Transcribe(r.Context(), body, strings.TrimSpace(mime))
	switch {
	case errors.Is(err, stt.ErrEmptyAudio):
		writeError(w, http.StatusBadRequest, "audio body is empty")
		return
	case err != nil:
		observe.Logger(r.Context()).Error("transcription failed", "error", err)
		writeError(w, http.StatusBadGateway, transcript.NoTranscriptionMessage)
		return
	}
	segments := tr.Segments
	if segments == nil {
		segments = []transcript.Segment{}
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Transcript: tr.String(), Segments: segments})
}
