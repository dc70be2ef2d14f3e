// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"time"

	"github.com/jeranaias/safechat-tui/internal/api"
	"github.com/jeranaias/safechat-tui/internal/model"
)

// BotMessage builds the transcript entry for a chat reply.
func BotMessage(resp *api.ChatResponse, now time.Time) model.Message {
	m := model.NewBotMessage(resp.Response, now)
	m.AgeBand = model.ParseAgeBand(resp.AgeBand)
	m.LiteracyInjected = resp.LiteracyInjected
	m.AgeGated = resp.AgeGate
	m.Adjusted = model.DetectAdjusted(resp.Adjusted, resp.Response)

	if resp.Risk != nil {
		m.RiskLevel = model.ParseRiskLevel(resp.Risk.RiskLevel)
	}
	if ex := resp.ModerationExplain; ex != nil {
		m.Moderation = &model.ModerationExplain{
			Reason:     ex.Reason,
			Categories: ex.Categories,
			AgeBand:    model.ParseAgeBand(ex.AgeBand),
		}
		if m.AgeBand == model.BandNone {
			m.AgeBand = m.Moderation.AgeBand
		}
	}
	return m.Clone()
}

// HistoryMessages maps backend history entries in order. Bot entries without
// a band default to adult.
func HistoryMessages(entries []api.HistoryEntry) []model.Message {
	out := make([]model.Message, 0, len(entries))
	for i, e := range entries {
		m := model.Message{
			ID:         model.HistoryID(i),
			Role:       model.ParseRole(e.Role),
			Content:    e.Content,
			Timestamp:  e.Timestamp.Time,
			Categories: e.Categories,
		}
		if m.Role == model.RoleBot {
			m.AgeBand = model.ParseAgeBand(e.AgeBand)
			if m.AgeBand == model.BandNone {
				m.AgeBand = model.BandAdult
			}
			m.Adjusted = model.DetectAdjusted(nil, e.Content)
		}
		out = append(out, m.Clone())
	}
	return out
}
