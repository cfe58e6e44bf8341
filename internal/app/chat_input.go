package app

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

type ChatInput struct {
	input textinput.Model
}

func NewChatInput(width int) *ChatInput {
	input := textinput.New()
	input.Placeholder = "Send a message"
	input.SetWidth(max(1, width))
	return &ChatInput{input: input}
}

func (c *ChatInput) Resize(width int) {
	if c == nil {
		return
	}
	c.input.SetWidth(max(1, width))
}

func (c *ChatInput) Focus() {
	if c == nil {
		return
	}
	c.input.Focus()
}

func (c *ChatInput) Blur() {
	if c == nil {
		return
	}
	c.input.Blur()
}

func (c *ChatInput) Focused() bool {
	if c == nil {
		return false
	}
	return c.input.Focused()
}

func (c *ChatInput) Value() string {
	if c == nil {
		return ""
	}
	return c.input.Value()
}

func (c *ChatInput) SetValue(value string) {
	if c == nil {
		return
	}
	c.input.SetValue(value)
}

func (c *ChatInput) Clear() {
	if c == nil {
		return
	}
	c.input.SetValue("")
}

func (c *ChatInput) Update(msg tea.Msg) tea.Cmd {
	if c == nil {
		return nil
	}
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

func (c *ChatInput) View() string {
	if c == nil {
		return ""
	}
	return c.input.View()
}
