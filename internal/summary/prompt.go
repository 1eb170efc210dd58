package summary

import (
	"fmt"
	"strings"
)

const minutesInstruction = `You are writing minutes for a voice-channel conversation.
Summarize the transcript into concise markdown minutes with these sections:
main topics discussed, decisions made, and action items (with owners when
mentioned). Keep speaker attributions where they matter. Lines noting audio
that could not be transcribed mark gaps in the record; mention a gap only if
it interrupts an important thread.`

const partialInstruction = `You are summarizing one time-ordered portion of a longer
voice-channel conversation. Produce a compact summary of just this portion:
topics, decisions, and action items, with speaker attributions. Do not invent
context from outside this portion.`

const condenseInstruction = `You are merging partial summaries of consecutive portions
of one voice-channel conversation, given in chronological order. Condense them
into one set of markdown minutes with main topics discussed, decisions made,
and action items. Remove duplication across portions.`

func sessionPreamble(info SessionInfo) string {
	var b strings.Builder
	if info.ChannelName != "" {
		fmt.Fprintf(&b, "\nChannel: %s.", info.ChannelName)
	}
	if info.SourceCount > 0 {
		fmt.Fprintf(&b, "\nSpeakers in window: %d.", info.SourceCount)
	}
	return b.String()
}

func minutesPrompt(info SessionInfo) string {
	return minutesInstruction + sessionPreamble(info)
}

func partialPrompt(info SessionInfo) string {
	return partialInstruction + sessionPreamble(info)
}

func condensePrompt(info SessionInfo) string {
	return condenseInstruction + sessionPreamble(info)
}
