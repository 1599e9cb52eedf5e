package tui

import (
	"fmt"
	"strings"

	"github.com/Zahlii/photobooth/pkg/booth"
	"github.com/Zahlii/photobooth/pkg/capture"
	"github.com/charmbracelet/lipgloss"
)

// View renders the current screen.
func (m Model) View() string {
	switch m.screen {
	case screenWelcome:
		return m.renderWelcome()
	case screenCapture:
		return m.renderCapture()
	default:
		return fmt.Sprintf("\n  %s connecting to the camera backend…\n", m.spinner.View())
	}
}

func (m Model) title() string {
	if m.cfg != nil && m.cfg.BoothTitle != "" {
		return m.cfg.BoothTitle
	}
	return booth.DefaultBoothConfig().BoothTitle
}

func (m Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title()))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("Choose a layout"))
	b.WriteString("\n\n")

	if len(m.layouts) == 0 && m.err == nil {
		b.WriteString(SubtitleStyle.Render("  no layouts available"))
		b.WriteString("\n")
	}
	for i, l := range m.layouts {
		line := fmt.Sprintf("%s  %s", l.Name, SubtitleStyle.Render(describeLayout(l)))
		if i == m.cursor {
			b.WriteString(SelectedLayoutStyle.Render("▸ " + line))
		} else {
			b.WriteString(LayoutStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	if m.busy {
		b.WriteString("\n" + m.spinner.View() + " preparing…\n")
	}
	if m.err != nil {
		b.WriteString("\n" + ErrorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString(FooterStyle.Render(m.help.View(m.wkeys)))
	return b.String()
}

func describeLayout(l booth.Layout) string {
	shots := "1 photo"
	if n := l.Images(); n != 1 {
		shots = fmt.Sprintf("%d photos", n)
	}
	if l.HasTemplate() {
		return shots + ", framed"
	}
	return shots
}

func (m Model) renderCapture() string {
	f := m.frame

	var b strings.Builder
	header := m.title()
	if m.view != nil {
		header = fmt.Sprintf("%s · %s", header, m.view.Layout.Name)
	}
	b.WriteString(TitleStyle.Render(header))
	b.WriteString("\n")

	b.WriteString(PaneStyle.Render(m.renderPane(f)))
	b.WriteString("\n")

	if f.Error != "" {
		b.WriteString(ErrorStyle.Render(f.Error) + "\n")
	} else if m.err != nil {
		b.WriteString(ErrorStyle.Render(m.err.Error()) + "\n")
	}

	if f.Dialog {
		b.WriteString(m.renderDialog())
		b.WriteString("\n")
		b.WriteString(FooterStyle.Render(m.help.View(m.dkeys)))
		return b.String()
	}
	b.WriteString(FooterStyle.Render(m.help.View(m.ckeys.forFrame(f))))
	return b.String()
}

func (m Model) renderPane(f capture.Frame) string {
	switch f.Pane {
	case capture.PaneSnapshot:
		body := m.snapArt
		if body == "" {
			body = m.spinner.View() + " loading picture…"
		}
		return body + "\n" + SuccessStyle.Render(snapshotCaption(f.Snapshot))

	case capture.PaneCapturing:
		return CapturingStyle.Render(m.spinner.View() + " Smile! Capturing…")

	case capture.PaneCountdown:
		banner := CountdownStyle.Render(fmt.Sprintf("%d", f.Remaining))
		if f.Shots > 1 {
			banner += SubtitleStyle.Render(fmt.Sprintf("  %d photos in this layout", f.Shots))
		}
		return lipgloss.JoinVertical(lipgloss.Left, banner, m.renderPreview(f))

	default:
		return m.renderPreview(f)
	}
}

func (m Model) renderPreview(f capture.Frame) string {
	if f.Stream == "" {
		return SubtitleStyle.Render("preview paused")
	}
	if m.preview == "" {
		return m.spinner.View() + " waiting for preview…"
	}
	info := SubtitleStyle.Render(fmt.Sprintf("%dx%d · frame %d", m.previewInfo.Width, m.previewInfo.Height, m.previewInfo.Seq))
	return m.preview + "\n" + info
}

func snapshotCaption(s *booth.SnapshotResponse) string {
	if s == nil {
		return ""
	}
	parts := []string{s.ImagePath}
	if x := s.Exif; x != nil {
		if x.Width > 0 {
			parts = append(parts, fmt.Sprintf("%dx%d", x.Width, x.Height))
		}
		if x.ISO > 0 {
			parts = append(parts, fmt.Sprintf("ISO %d", x.ISO))
		}
		if x.FStop > 0 {
			parts = append(parts, fmt.Sprintf("f/%.1f", x.FStop))
		}
		if x.ExposureTime != "" {
			parts = append(parts, x.ExposureTime+"s")
		}
	}
	return strings.Join(parts, " · ")
}

func (m Model) renderDialog() string {
	printer := ""
	if m.cfg != nil && m.cfg.DefaultPrinter != "" {
		printer = SubtitleStyle.Render("on " + m.cfg.DefaultPrinter)
	}
	copies := "copy"
	if m.copies != 1 {
		copies = "copies"
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		TitleStyle.Render("Print"),
		fmt.Sprintf("◀  %d %s  ▶", m.copies, copies),
		printer,
	)
	return DialogStyle.Render(body)
}
