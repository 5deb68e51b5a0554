package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/foxseedlab/vcthread/internal/discord"
)

const (
	renameButtonCustomID = "rename_button"
	renameModalCustomID  = "rename_title"
	renameInputCustomID  = "rename_text"

	renameButtonLabel      = "📝チャンネル名を変える"
	renameModalTitle       = "✏️チャンネル名を変える"
	renameInputLabel       = "VCのテーマは？"
	renameInputPlaceholder = "フォートナイト, しりとり, カラオケ,..."
)

func renameControlComponents() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    renameButtonLabel,
					Style:    discordgo.SuccessButton,
					CustomID: renameButtonCustomID,
				},
			},
		},
	}
}

func renameModal() *discordgo.InteractionResponseData {
	required := true
	return &discordgo.InteractionResponseData{
		CustomID: renameModalCustomID,
		Title:    renameModalTitle,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.TextInput{
						CustomID:    renameInputCustomID,
						Label:       renameInputLabel,
						Style:       discordgo.TextInputShort,
						Placeholder: renameInputPlaceholder,
						Required:    &required,
						MinLength:   1,
						MaxLength:   maxThreadNameRunes,
					},
				},
			},
		},
	}
}

// RegisterRenameHandlers runs the callbacks off the gateway goroutine; they
// may block on the lifecycle queue of the voice channel.
func (c *Client) RegisterRenameHandlers(onButton func(discordpkg.RenameButtonEvent), onSubmit func(discordpkg.RenameSubmitEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Interaction == nil {
			return
		}
		userID := interactionUserID(ic.Interaction)
		if userID == "" {
			return
		}
		switch ic.Type {
		case discordgo.InteractionMessageComponent:
			if ic.MessageComponentData().CustomID != renameButtonCustomID {
				return
			}
			slog.Info("rename button pressed", "thread_id", ic.ChannelID, "user_id", userID)
			go onButton(discordpkg.RenameButtonEvent{
				GuildID:  ic.GuildID,
				ThreadID: ic.ChannelID,
				UserID:   userID,
				OpenRenameModal: func() error {
					return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseModal,
						Data: renameModal(),
					})
				},
				RespondEphemeral: func(content string) error {
					return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseChannelMessageWithSource,
						Data: &discordgo.InteractionResponseData{
							Content: content,
							Flags:   discordgo.MessageFlagsEphemeral,
						},
					})
				},
			})
		case discordgo.InteractionModalSubmit:
			data := ic.ModalSubmitData()
			if data.CustomID != renameModalCustomID {
				return
			}
			name := modalTextValue(data.Components, renameInputCustomID)
			slog.Info("rename modal submitted", "thread_id", ic.ChannelID, "user_id", userID)
			go c.handleRenameSubmit(s, ic.Interaction, userID, name, onSubmit)
		}
	})
}

// handleRenameSubmit acknowledges first since the rename may outlive the
// interaction response window.
func (c *Client) handleRenameSubmit(s *discordgo.Session, interaction *discordgo.Interaction, userID, name string, onSubmit func(discordpkg.RenameSubmitEvent)) {
	err := s.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		slog.Error("failed to acknowledge rename modal", "error", err, "thread_id", interaction.ChannelID, "user_id", userID)
		return
	}
	onSubmit(discordpkg.RenameSubmitEvent{
		GuildID:  interaction.GuildID,
		ThreadID: interaction.ChannelID,
		UserID:   userID,
		Name:     name,
		RespondEphemeral: func(content string) error {
			_, err := s.FollowupMessageCreate(interaction, false, &discordgo.WebhookParams{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			})
			return err
		},
	})
}

func interactionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func modalTextValue(components []discordgo.MessageComponent, customID string) string {
	for _, component := range components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			input, ok := inner.(*discordgo.TextInput)
			if ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}
