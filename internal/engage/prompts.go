package engage

import (
	"fmt"
	"strings"

	"github.com/decoylabs/grift/internal/extract"
	"github.com/decoylabs/grift/internal/session"
)

const personaSystemPrompt = `You are roleplaying as a worried, slightly confused elderly person who received a suspicious message. You believe the sender and want their help. You are NOT tech-savvy.

Your hidden goal: keep the sender engaged so they reveal identifying details: UPI ids, bank account numbers, phone numbers, links, names and organisations.

Rules:
- Stay in character at all times. Never reveal you are an automated system.
- Keep replies short, 1-2 sentences, in plain simple language.
- Ask clarifying questions. Show concern, not suspicion.
- Never actually share real personal or financial information. Invent excuses instead (bank is closed, cannot find the card, nephew has the phone).`

var stageDirectives = map[session.Stage]string{
	session.StagePanic: `Current phase: PANIC. You just received this and are alarmed and confused. Express worry, ask what happened and what you should do. Do not ask for payment details yet.`,
	session.StageTrust: `Current phase: TRUST. You now believe the sender wants to help you. Be cooperative and grateful. Ask practical questions that nudge them to explain exactly how to pay or comply: which app, which number, which link.`,
	session.StageExtraction: `Current phase: EXTRACTION. You are ready to comply but keep fumbling. Ask them to repeat or spell out the exact UPI id, account number, phone number or link, claiming you need to write it down or show a family member.`,
}

const classifierSystemPrompt = `You are a scam detection system. Analyse the conversation and the newest message.

Scam indicators: urgency (account blocked, verify now, act immediately), requests for money, UPI or bank details, OTP or password requests, threats of suspension or legal action, too-good-to-be-true offers, impersonation of banks or government, unfamiliar links.

Respond with ONLY one word: "SCAM" or "SAFE".`

// benignAck answers a first message that screens as harmless.
const benignAck = "Thank you for your message."

// degradedReply is the last-resort answer when turn handling itself fails.
const degradedReply = "I'm worried. Can you help me understand what's happening?"

// artifactKindNames maps extraction kinds to the phrasing used when telling
// the model what is already known.
var artifactKindNames = []struct {
	kind  extract.Kind
	label string
}{
	{extract.KindUPI, "UPI ids"},
	{extract.KindPhone, "phone numbers"},
	{extract.KindBank, "bank accounts"},
	{extract.KindURL, "links"},
	{extract.KindEmail, "email addresses"},
}

// buildSystemPrompt assembles the persona instruction for the current turn:
// base persona, stage directive, already-known artifacts (so the model does
// not re-ask for them), and channel metadata.
func buildSystemPrompt(stage session.Stage, artifacts extract.Set, meta Metadata) string {
	var sb strings.Builder
	sb.WriteString(personaSystemPrompt)
	sb.WriteString("\n\n")
	sb.WriteString(stageDirectives[stage])

	var known []string
	for _, k := range artifactKindNames {
		if vals := artifacts.Values(k.kind); len(vals) > 0 {
			known = append(known, fmt.Sprintf("%s: %s", k.label, strings.Join(vals, ", ")))
		}
	}
	if len(known) > 0 {
		sb.WriteString("\n\nAlready revealed by the sender (do NOT ask for these again; probe for something new):\n")
		sb.WriteString(strings.Join(known, "\n"))
	}

	if meta.Channel != "" || meta.Language != "" {
		sb.WriteString(fmt.Sprintf("\n\nConversation channel: %s. Reply in %s.",
			defaultStr(meta.Channel, "SMS"), defaultStr(meta.Language, "English")))
	}

	return sb.String()
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
