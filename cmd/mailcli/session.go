package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/wolfman30/ai-mail-assistant/internal/conversation"
	"github.com/wolfman30/ai-mail-assistant/internal/drafts"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	subjectStyle = lipgloss.NewStyle().
			Bold(true)

	bodyStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(lipgloss.Color("252"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

type choice struct {
	Label string
	Value string
}

type prompter interface {
	Intent(recipient string) (string, error)
	Choose(options []choice) (string, error)
}

// session drives one engine conversation from the terminal.
type session struct {
	engine *conversation.Engine
	id     string
	prompt prompter
	out    io.Writer
}

func (s *session) run(ctx context.Context, recipient string) error {
	cancel := s.engine.CancelKeyword()

	s.engine.Handle(ctx, s.id, s.engine.TriggerPhrase())
	reply := s.engine.Handle(ctx, s.id, recipient)
	state, err := s.state(ctx)
	if err != nil {
		return err
	}
	if state.Phase != conversation.PhaseAwaitingIntent {
		s.engine.Handle(ctx, s.id, cancel)
		return errors.New(reply)
	}

	intent, err := s.prompt.Intent(state.Recipient)
	if err != nil {
		s.engine.Handle(ctx, s.id, cancel)
		return err
	}

	fmt.Fprintln(s.out, infoStyle.Render("Writing drafts..."))
	reply = s.engine.Handle(ctx, s.id, intent)
	state, err = s.state(ctx)
	if err != nil {
		return err
	}
	if state.Phase != conversation.PhaseAwaitingSelection {
		return errors.New(reply)
	}

	for {
		renderDrafts(s.out, state.Drafts)
		picked, err := s.prompt.Choose(draftChoices(state.Drafts, cancel))
		if err != nil {
			s.engine.Handle(ctx, s.id, cancel)
			return err
		}

		reply = s.engine.Handle(ctx, s.id, picked)
		state, err = s.state(ctx)
		if err != nil {
			return err
		}
		if state.Phase == conversation.PhaseIdle {
			if picked == cancel {
				fmt.Fprintln(s.out, infoStyle.Render(reply))
			} else {
				fmt.Fprintln(s.out, successStyle.Render("✓ "+reply))
			}
			return nil
		}
		// Send failed; drafts are kept so the user can retry or pick another.
		fmt.Fprintln(s.out, errorStyle.Render(reply))
	}
}

func (s *session) state(ctx context.Context) (conversation.State, error) {
	state, ok, err := s.engine.Snapshot(ctx, s.id)
	if err != nil {
		return conversation.State{}, err
	}
	if !ok {
		return conversation.State{Identifier: s.id, Phase: conversation.PhaseIdle}, nil
	}
	return state, nil
}

func renderDrafts(w io.Writer, list []drafts.Draft) {
	for _, d := range list {
		heading := fmt.Sprintf("Draft %d", d.Index)
		if d.Style != "" {
			heading += " (" + d.Style + ")"
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(heading))
		fmt.Fprintln(w, subjectStyle.Render("Subject: "+d.Subject))
		fmt.Fprintln(w, bodyStyle.Render(d.Body))
	}
	fmt.Fprintln(w)
}

func draftChoices(list []drafts.Draft, cancel string) []choice {
	out := make([]choice, 0, len(list)+1)
	for _, d := range list {
		out = append(out, choice{
			Label: fmt.Sprintf("%d. %s", d.Index, d.Subject),
			Value: fmt.Sprint(d.Index),
		})
	}
	return append(out, choice{Label: "Cancel", Value: cancel})
}

type huhPrompter struct{}

func (huhPrompter) Intent(recipient string) (string, error) {
	var intent string
	err := huh.NewText().
		Title("What should the email to " + recipient + " say?").
		Description("Keywords or a short description are enough.").
		Value(&intent).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("tell me what to write")
			}
			return nil
		}).
		Run()
	return intent, err
}

func (huhPrompter) Choose(options []choice) (string, error) {
	opts := make([]huh.Option[string], 0, len(options))
	for _, c := range options {
		opts = append(opts, huh.NewOption(c.Label, c.Value))
	}
	var picked string
	err := huh.NewSelect[string]().
		Title("Which draft should I send?").
		Options(opts...).
		Value(&picked).
		Run()
	return picked, err
}
