package protocol

import "encoding/json"

// ScreenType tags one variant of the remote-screen union. The set is closed;
// tags outside it render as ScreenUnknown placeholders rather than failing.
type ScreenType int

const (
	ScreenUnknown  ScreenType = 0
	ScreenMainMenu ScreenType = 1
	ScreenPassword ScreenType = 2
	ScreenFileList ScreenType = 3
	ScreenLogView  ScreenType = 4
	ScreenBBS      ScreenType = 5
	ScreenBank     ScreenType = 6
	ScreenShop     ScreenType = 7
	ScreenLinks    ScreenType = 8
	ScreenMessage  ScreenType = 9
	ScreenDialog   ScreenType = 10
	ScreenCypher   ScreenType = 11
	ScreenVoice    ScreenType = 12
)

var screenNames = map[ScreenType]string{
	ScreenMainMenu: "main_menu",
	ScreenPassword: "password",
	ScreenFileList: "file_list",
	ScreenLogView:  "log_view",
	ScreenBBS:      "bbs",
	ScreenBank:     "bank",
	ScreenShop:     "shop",
	ScreenLinks:    "links",
	ScreenMessage:  "message",
	ScreenDialog:   "dialog",
	ScreenCypher:   "cypher",
	ScreenVoice:    "voice",
}

func (t ScreenType) String() string {
	if n, ok := screenNames[t]; ok {
		return n
	}
	return "unknown"
}

func KnownScreenType(t ScreenType) bool {
	_, ok := screenNames[t]
	return ok
}

// ScreenData is the opaque screen payload. Only the tag is shared across
// variants; the raw bytes are kept so each renderer can decode its own
// variant struct.
type ScreenData struct {
	Type ScreenType
	Raw  json.RawMessage
}

func (s *ScreenData) UnmarshalJSON(b []byte) error {
	var tag struct {
		Type ScreenType `json:"screen_type"`
	}
	if err := json.Unmarshal(b, &tag); err != nil {
		return err
	}
	s.Type = tag.Type
	s.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func (s ScreenData) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	return json.Marshal(struct {
		Type ScreenType `json:"screen_type"`
	}{s.Type})
}

// Decode unmarshals the payload into a variant struct.
func (s ScreenData) Decode(v any) error {
	if len(s.Raw) == 0 {
		return nil
	}
	return json.Unmarshal(s.Raw, v)
}

// Variant payloads for the screens the client renders itself. Servers may
// send more fields than these; renderers take what they know.

type MenuScreen struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type PasswordScreen struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

type FileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type FileListScreen struct {
	Title string      `json:"title"`
	Files []FileEntry `json:"files"`
}

type LogEntry struct {
	At   uint64 `json:"at"`
	From string `json:"from"`
	Text string `json:"text"`
}

type LogViewScreen struct {
	Title string     `json:"title"`
	Logs  []LogEntry `json:"logs"`
}

type DialogScreen struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}
