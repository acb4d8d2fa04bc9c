package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"vitigo_crm_backend/internal/query/transport"
)

// Channel names as they appear in webhook paths.
const (
	ChannelWhatsApp  = "whatsapp"
	ChannelFacebook  = "facebook"
	ChannelInstagram = "instagram"
)

// SourceFor maps a webhook path channel to the query source.
func SourceFor(channel string) (transport.Source, bool) {
	switch channel {
	case ChannelWhatsApp:
		return transport.SourceWhatsApp, true
	case ChannelFacebook:
		return transport.SourceFacebook, true
	case ChannelInstagram:
		return transport.SourceInstagram, true
	default:
		return "", false
	}
}

// InboundMessage is the normalized form of one platform message.
type InboundMessage struct {
	Source     transport.Source
	SenderID   string
	SenderName string
	// Phone is set for WhatsApp, where the sender id is the phone number.
	Phone     string
	MessageID string
	Text      string
	// Raw is the delivery envelope as received, persisted with the
	// ingest record.
	Raw []byte
}

// whatsappPayload models the Meta Cloud API delivery envelope.
type whatsappPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// messengerPayload models the Facebook/Instagram messaging envelope.
type messengerPayload struct {
	Entry []struct {
		Messaging []struct {
			Sender struct {
				ID string `json:"id"`
			} `json:"sender"`
			Message struct {
				MID    string `json:"mid"`
				Text   string `json:"text"`
				IsEcho bool   `json:"is_echo"`
			} `json:"message"`
		} `json:"messaging"`
	} `json:"entry"`
}

// ParsePayload extracts the inbound messages from a platform POST body.
// Status callbacks and echoes yield an empty slice, not an error.
func ParsePayload(channel string, body []byte) ([]InboundMessage, error) {
	source, ok := SourceFor(channel)
	if !ok {
		return nil, fmt.Errorf("unknown webhook channel %q", channel)
	}

	var (
		msgs []InboundMessage
		err  error
	)
	if channel == ChannelWhatsApp {
		msgs, err = parseWhatsApp(source, body)
	} else {
		msgs, err = parseMessenger(source, body)
	}
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Raw = body
	}
	return msgs, nil
}

func parseWhatsApp(source transport.Source, body []byte) ([]InboundMessage, error) {
	var payload whatsappPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse whatsapp payload: %w", err)
	}

	var out []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, m := range change.Value.Messages {
				if m.Type != "" && m.Type != "text" {
					continue
				}
				text := strings.TrimSpace(m.Text.Body)
				if m.ID == "" || text == "" {
					continue
				}
				out = append(out, InboundMessage{
					Source:     source,
					SenderID:   m.From,
					SenderName: names[m.From],
					Phone:      m.From,
					MessageID:  m.ID,
					Text:       text,
				})
			}
		}
	}
	return out, nil
}

func parseMessenger(source transport.Source, body []byte) ([]InboundMessage, error) {
	var payload messengerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse messenger payload: %w", err)
	}

	var out []InboundMessage
	for _, entry := range payload.Entry {
		for _, m := range entry.Messaging {
			text := strings.TrimSpace(m.Message.Text)
			if m.Message.IsEcho || m.Message.MID == "" || text == "" {
				continue
			}
			out = append(out, InboundMessage{
				Source:    source,
				SenderID:  m.Sender.ID,
				MessageID: m.Message.MID,
				Text:      text,
			})
		}
	}
	return out, nil
}
