package server

import (
	"encoding/base64"
	"path"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/robosim/sweeperboard/state"
)

// maxUploadBytes caps the decoded size of an uploaded code file.
const maxUploadBytes = 2 << 20 // 2 MiB

// defaultUploadName is used when the client omits a filename.
const defaultUploadName = "robot.py"

// command is the client-to-server message shape. Content and Filename are
// only meaningful for uploads.
type command struct {
	Action   string `json:"action"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

// handleCommand interprets one text frame as a JSON command. Malformed or
// unknown messages are dropped without touching the connection: the
// dashboard page and the server version independently, and an old page must
// not lose its socket over a button the server no longer knows.
func (s *Server) handleCommand(log zerolog.Logger, payload []byte) {
	var cmd command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		log.Debug().Err(err).Msg("ignoring malformed command")
		return
	}

	switch cmd.Action {
	case "run":
		s.store.Request(state.FlagRun)
	case "relocate":
		s.store.Request(state.FlagRelocate)
	case "end":
		s.store.Request(state.FlagEnd)
	case "upload":
		s.applyUpload(log, cmd)
	default:
		log.Debug().Str("action", cmd.Action).Msg("ignoring unknown command")
	}
}

// applyUpload validates and persists an uploaded code file, then pushes the
// new state to every client immediately instead of waiting out the broadcast
// interval. Validation failures are silent no-ops toward the client; the
// page keeps its previous state, which is the compatible behavior.
func (s *Server) applyUpload(log zerolog.Logger, cmd command) {
	if cmd.Content == "" {
		return
	}

	data, err := base64.StdEncoding.DecodeString(cmd.Content)
	if err != nil {
		log.Debug().Err(err).Msg("rejecting upload: bad base64")
		return
	}
	if len(data) > maxUploadBytes {
		log.Debug().Int("size", len(data)).Msg("rejecting upload: too large")
		return
	}

	name := safeBasename(cmd.Filename)
	if err := s.sink.Store(data); err != nil {
		log.Warn().Err(err).Msg("failed to store uploaded code")
		return
	}

	s.store.SetLastUpload(name)
	log.Info().Str("filename", name).Int("size", len(data)).Msg("robot code uploaded")
	s.broadcastState()
}

// safeBasename reduces a client-supplied filename to a bare name for
// display, with a default when absent. Both separator styles are stripped
// since the client may run on any OS.
func safeBasename(filename string) string {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		return defaultUploadName
	}
	return name
}
