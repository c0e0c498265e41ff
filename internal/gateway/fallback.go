package gateway

import "github.com/decoylabs/grift/internal/session"

const replyMaxTokens = 256

// fallbackReplies are the canned persona lines used when no inference slot
// can serve. Keyed by stage, with a variant for sessions where identifying
// details are already known so the persona does not re-ask for them.
var fallbackReplies = map[session.Stage][2]string{
	session.StagePanic: {
		"Oh no, this sounds very serious. I am not good with these things. What should I do?",
		"I am so worried about this. Please tell me again what is happening with my account?",
	},
	session.StageTrust: {
		"Okay, I want to fix this properly. Can you tell me exactly where I should send the payment? Is there a UPI id or account number?",
		"Thank you for being patient with me. Is there another number I can call you on if this one does not work?",
	},
	session.StageExtraction: {
		"My nephew says I should only pay to an official account. Can you send me the full account details and the link once more so I can show him?",
		"I wrote down the details you gave me but my hands shake and I may have copied them wrong. Could you send everything once more?",
	},
}

// Fallback returns the deterministic canned reply for a stage. Always
// non-empty and always available, whatever state the slot pool is in.
func Fallback(stage session.Stage, haveArtifacts bool) string {
	pair, ok := fallbackReplies[stage]
	if !ok {
		pair = fallbackReplies[session.StagePanic]
	}
	if haveArtifacts {
		return pair[1]
	}
	return pair[0]
}
