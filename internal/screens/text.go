package screens

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"gridlink.io/internal/protocol"
)

// TextRenderers returns a registry covering the variants the headless client
// renders as plain text. A graphical front end registers its own factories
// over these.
func TextRenderers() *Registry {
	r := NewRegistry()
	r.Register(protocol.ScreenMainMenu, renderMenu)
	r.Register(protocol.ScreenPassword, renderPassword)
	r.Register(protocol.ScreenFileList, renderFileList)
	r.Register(protocol.ScreenLogView, renderLogView)
	r.Register(protocol.ScreenDialog, renderDialog)
	r.Register(protocol.ScreenMessage, renderDialog)
	return r
}

func renderMenu(t Target, data protocol.ScreenData) Handle {
	var m protocol.MenuScreen
	_ = data.Decode(&m)
	t.Println(m.Title)
	for i, opt := range m.Options {
		t.Println(fmt.Sprintf(" %d. %s", i+1, opt))
	}
	return nopHandle{}
}

func renderPassword(t Target, data protocol.ScreenData) Handle {
	var p protocol.PasswordScreen
	_ = data.Decode(&p)
	t.Println(p.Title)
	if p.Prompt == "" {
		p.Prompt = "enter password:"
	}
	t.Println(p.Prompt)
	return nopHandle{}
}

func renderFileList(t Target, data protocol.ScreenData) Handle {
	var f protocol.FileListScreen
	_ = data.Decode(&f)
	t.Println(f.Title)
	for _, file := range f.Files {
		t.Println(fmt.Sprintf("  %-32s %8s", file.Name, humanize.Bytes(uint64(file.Size))))
	}
	return nopHandle{}
}

func renderLogView(t Target, data protocol.ScreenData) Handle {
	var l protocol.LogViewScreen
	_ = data.Decode(&l)
	t.Println(l.Title)
	for _, e := range l.Logs {
		t.Println(fmt.Sprintf("  [%d] %s: %s", e.At, e.From, e.Text))
	}
	return nopHandle{}
}

func renderDialog(t Target, data protocol.ScreenData) Handle {
	var d protocol.DialogScreen
	_ = data.Decode(&d)
	t.Println(d.Title)
	if d.Body != "" {
		t.Println(d.Body)
	}
	if d.Error != "" {
		t.Println("error: " + d.Error)
	}
	return nopHandle{}
}
