package mcpserver

// NoteFormatURI is the resource URI of NoteFormatContract.
const NoteFormatURI = "lore://note-format"

// NoteFormatContract tells LLM clients how note content is interpreted.
const NoteFormatContract = `# Lore Note Format

A note has a **title** and a free-form UTF-8 **content** body. The title is
passed separately from the content and must be unique across all notes.

## Links

- ` + "`[[Title]]`" + ` links to the note whose title is exactly ` + "`Title`" + `.
- ` + "`[[Title#Heading]]`" + ` links to the same note; the heading part is ignored.
- ` + "`[[Title|shown text]]`" + ` links to ` + "`Title`" + `; the alias is ignored.
- Whitespace around the target is trimmed. Repeated links count once.
- A link may name a note that does not exist yet. It shows up in the graph
  and in backlinks as soon as a note with that title is created.

## Tags

- A tag is ` + "`#`" + ` at the start of the content or after whitespace, followed by
  letters, digits, ` + "`_`" + `, ` + "`-`" + ` or ` + "`/`" + `.
- Use ` + "`/`" + ` for hierarchy: ` + "`#project/alpha`" + `.
- Markdown headings (` + "`# Heading`" + `) are not tags because of the space.

## Example

Title: ` + "`Weekly standup 2025-01-20`" + `

` + "```" + `markdown
Attendees: Alice, Bob. #meeting-notes #project/x

- [[Alice]] to review the [[Design doc#Storage]]
- Bob to update [[Project X roadmap|the roadmap]]
` + "```" + `
`
