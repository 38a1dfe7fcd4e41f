package loader

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Button identifies the dialog button the user pressed
type Button int

const (
	// ButtonBack means the dialog was dismissed
	ButtonBack Button = iota
	// ButtonLeft is the left button
	ButtonLeft
	// ButtonCenter is the center button
	ButtonCenter
	// ButtonRight is the right button
	ButtonRight
)

// Dialog is a modal message rendered by a Presenter
type Dialog struct {
	Header string
	Text   string
	Icon   string
	Left   string
	Center string
	Right  string
}

// Presenter renders dialogs and blocks until the user answers
type Presenter interface {
	Show(d Dialog) Button
}

// LogPresenter logs dialogs and answers ButtonBack, declining every prompt
type LogPresenter struct {
	Logger *zap.Logger
}

// Show logs the dialog
func (p LogPresenter) Show(d Dialog) Button {
	if p.Logger != nil {
		p.Logger.Info("dialog", zap.String("header", d.Header), zap.String("text", d.Text))
	}
	return ButtonBack
}

type errorView struct {
	header      string
	description string
	code        string
}

var errorViews = map[ErrorKind]errorView{
	KindUnknownApp:       {"App Not Found", "Update firmware or app", "err_01"},
	KindInvalidFile:      {"Invalid File", "Update the app", "err_02"},
	KindInvalidManifest:  {"Invalid Manifest", "Update firmware or app", "err_03"},
	KindMissingImports:   {"Missing Imports", "Update app or firmware", "err_04"},
	KindHWMismatch:       {"HW Target\nMismatch", "App not supported", "err_05"},
	KindOutdatedApp:      {"Outdated App", "Update the app", "err_06"},
	KindOutdatedFirmware: {"Outdated\nFirmware", "Update firmware", "err_07"},
}

func (v errorView) dialog() Dialog {
	return Dialog{
		Header: "Error: " + v.header,
		Text:   fmt.Sprintf("%s\nError code: %s", v.description, v.code),
		Icon:   v.code,
	}
}

// presentError renders the built-in presentation for a failed start of name
func (s *Supervisor) presentError(res Result, name string) {
	switch res.Status {
	case StatusOK, StatusAppStarted, StatusDeclined:
		return
	case StatusUnknownApp:
		if _, ok := s.registry.FindExternal(name); ok {
			s.presenter.Show(Dialog{
				Header: "Update needed",
				Text:   "Update firmware\nto run this app",
				Icon:   "warning",
			})
			return
		}
		s.presenter.Show(errorViews[KindUnknownApp].dialog())
		return
	}

	if v, ok := errorViews[res.Kind]; ok {
		s.presenter.Show(v.dialog())
		return
	}

	if res.Kind == KindOutOfMemory {
		btn := s.presenter.Show(Dialog{
			Header: "Error: Out of Memory",
			Text:   "Not enough RAM to run the\napp. Please reboot the device",
			Right:  "Reboot",
		})
		if btn == ButtonRight {
			s.logger.Warn("rebooting after out of memory")
			s.power.Reset()
		}
		return
	}

	s.presenter.Show(Dialog{
		Header: "Error",
		Text:   formatGenericError(res.Message, s.appsRoot),
	})
}

// formatGenericError breaks a status message into short lines for a small
// display: the apps directory prefix is dropped and separators become newlines
func formatGenericError(msg, appsRoot string) string {
	if appsRoot != "" {
		msg = strings.ReplaceAll(msg, appsRoot, "")
	}
	return strings.NewReplacer(": ", "\n", ", ", "\n", ":", "\n").Replace(msg)
}

// confirmMismatch asks whether to run an image despite an API mismatch
func (s *Supervisor) confirmMismatch(m Manifest, c Classification) bool {
	header, cmp := "App Too Old", '<'
	if c == ClassAPITooNew {
		header, cmp = "App Too New", '>'
	}
	text := fmt.Sprintf("APP:%d %c FW:%d\nThis app might not work\nContinue anyways?",
		m.API.Major, cmp, s.images.APIVersion().Major)

	return s.presenter.Show(Dialog{
		Header: header,
		Text:   text,
		Left:   "Cancel",
		Right:  "Continue",
	}) == ButtonRight
}
