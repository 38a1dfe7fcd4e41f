package loader

import "context"

// Overlay is a UI mode tracked independently of the foreground slot
type Overlay int

const (
	// OverlayNone means no overlay is open
	OverlayNone Overlay = iota
	// OverlayMenu is the main menu
	OverlayMenu
	// OverlaySettings is the menu in settings mode
	OverlaySettings
	// OverlayApplications is the application browser
	OverlayApplications
)

// Overlay string constants
const (
	overlayNoneStr         = "none"
	overlayMenuStr         = "menu"
	overlaySettingsStr     = "settings"
	overlayApplicationsStr = "applications"
)

// String returns the string representation of an Overlay
func (o Overlay) String() string {
	switch o {
	case OverlayMenu:
		return overlayMenuStr
	case OverlaySettings:
		return overlaySettingsStr
	case OverlayApplications:
		return overlayApplicationsStr
	default:
		return overlayNoneStr
	}
}

// OverlayOpener shows overlay UIs. The UI calls closed once when the user
// leaves it; closed posts to the Supervisor and must not be called from
// within Open.
type OverlayOpener interface {
	Open(o Overlay, closed func())
}

type noopOverlays struct{}

func (noopOverlays) Open(Overlay, func()) {}

// OverlayState reports the open overlays. The menu slot holds the menu or
// settings overlay; the application browser is tracked on its own and may be
// open alongside the menu.
type OverlayState struct {
	Menu         Overlay
	Applications bool
}

// String returns the string representation of an OverlayState
func (o OverlayState) String() string {
	switch {
	case o.Menu == OverlayNone && !o.Applications:
		return overlayNoneStr
	case o.Menu == OverlayNone:
		return overlayApplicationsStr
	case o.Applications:
		return o.Menu.String() + "+" + overlayApplicationsStr
	default:
		return o.Menu.String()
	}
}

// doShowOverlay opens o unless its slot is already taken. Menu and settings
// share one slot, so settings requested over an open menu is ignored.
func (s *Supervisor) doShowOverlay(o Overlay) {
	switch o {
	case OverlayMenu, OverlaySettings:
		if s.overlays.Menu != OverlayNone {
			return
		}
		s.overlays.Menu = o
	case OverlayApplications:
		if s.overlays.Applications {
			return
		}
		s.overlays.Applications = true
	default:
		return
	}
	s.overlayUI.Open(o, func() {
		_ = s.post(context.Background(), message{kind: msgOverlayClosed, overlay: o})
	})
}

func (s *Supervisor) doOverlayClosed(o Overlay) {
	switch o {
	case OverlayMenu, OverlaySettings:
		if s.overlays.Menu == o {
			s.overlays.Menu = OverlayNone
		}
	case OverlayApplications:
		s.overlays.Applications = false
	}
}
