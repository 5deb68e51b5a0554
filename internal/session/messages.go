package session

import (
	"fmt"
	"strings"

	"github.com/foxseedlab/vcthread/internal/discord"
)

const (
	fallbackChannelName = "不明なチャンネル"

	messageAnnouncementFormat = "%s さんが新しいVCを作成しました。\nVCに参加する→ %s"
	messageVCChatLinkFormat   = "VCチャット→ %s"
	messageWelcomeFormat      = "%s `%s`へようこそ。\n興味を引くチャンネル名に変えてみんなを呼び込もう！"
	messageJoinedFormat       = "%s さんが参加しました。"

	messageSummaryTitle              = ":stopwatch: **ボイスチャットが終了しました。**"
	messageSummaryChannelFormat      = "ボイスチャンネル名：%s"
	messageSummaryPeriodFormat       = "ボイスチャット期間：%s ~ %s（%s）"
	messageSummaryDurationFormat     = "通話時間：%s"
	messageSummaryParticipantsFormat = "参加者（%d人）：%s"
	messageSummaryNoParticipants     = "なし"

	messageEphemeralSessionGone  = "❌そのVCは既に解散しています"
	messageEphemeralOwnerOnly    = "❌VCのオーナーのみが名前を変更できます"
	messageEphemeralInvalidName  = "❌チャンネル名は1〜100文字で入力してください"
	messageEphemeralRenameFailed = "❌名前の変更に失敗しました"
	messageEphemeralRenamed      = "✅名前を変更しました"
)

func announcementMessage(memberID, voiceChannelID string) string {
	return fmt.Sprintf(messageAnnouncementFormat, discord.UserMention(memberID), discord.ChannelMention(voiceChannelID))
}

func vcChatLinkMessage(threadID string) string {
	return fmt.Sprintf(messageVCChatLinkFormat, discord.ChannelMention(threadID))
}

func welcomeMessage(memberID, channelName string) string {
	return fmt.Sprintf(messageWelcomeFormat, discord.UserMention(memberID), channelName)
}

func joinedMessage(memberID string) string {
	return fmt.Sprintf(messageJoinedFormat, discord.UserMention(memberID))
}

func participantMentions(ids []string) string {
	if len(ids) == 0 {
		return messageSummaryNoParticipants
	}
	mentions := make([]string, 0, len(ids))
	for _, id := range ids {
		mentions = append(mentions, discord.UserMention(id))
	}
	return strings.Join(mentions, "、")
}
