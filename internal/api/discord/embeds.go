package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/akira-bot/deejay/internal/app/view"
)

const (
	colorInfo  = 0x1DB954
	colorError = 0xE74C3C
)

func requestEmbed(heading string, s view.RequestSummary) *discordgo.MessageEmbed {
	embed := trackEmbed(s.Track)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: heading}
	if s.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: s.Footer}
	}
	return embed
}

func queueEmbed(heading string, qv view.QueueView) *discordgo.MessageEmbed {
	embed := trackEmbed(qv.Current)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: heading}

	var b strings.Builder
	b.WriteString(strings.Join(qv.Upcoming, "\n"))
	if qv.Remaining > 0 {
		fmt.Fprintf(&b, "\n...and %d more", qv.Remaining)
	}
	embed.Description = b.String()

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Total",
		Value:  view.HumanDuration(qv.TotalDuration),
		Inline: true,
	})
	return embed
}

func nowPlayingEmbed(heading string, e view.Entry) *discordgo.MessageEmbed {
	embed := trackEmbed(e)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: heading}
	return embed
}

func trackEmbed(e view.Entry) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: view.Truncate(e.Title, view.MaxTitleWidth),
		URL:   e.URL,
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: view.HumanDuration(e.Duration), Inline: true},
		},
	}
	if e.RequesterID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Requested by",
			Value:  "<@" + e.RequesterID + ">",
			Inline: true,
		})
	}
	if e.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	return embed
}

func errorEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: message,
		Color:       colorError,
	}
}
