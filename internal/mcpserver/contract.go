package mcpserver

// ChapterFormatContract describes the chapter document format that LLM
// consumers should follow when reading or rewriting chapters.
const ChapterFormatContract = `# Verbas Chapter Format Contract

A Verbas project is a directory holding a ` + "`" + `<name>.verbas` + "`" + ` project file and
the structure folders ` + "`" + `chapters/ images/ fonts/ style/ exports/ notes/` + "`" + `.
The primary chapter is ` + "`" + `chapters/base.md` + "`" + `.

## Structure

` + "```" + `markdown
+++
title = "Chapter one"                 # REQUIRED – display title
created_at = "2025-01-15T10:00:00Z"   # RFC 3339
updated_at = "2025-01-20T18:30:00Z"   # RFC 3339
+++

Body text in standard Markdown.
` + "```" + `

## Rules

1. **The metadata block is TOML between ` + "`" + `+++` + "`" + ` lines** and must be the first
   thing in the file. It is never shown in the editor.
2. **Write only the body.** ` + "`" + `write_chapter` + "`" + ` keeps the existing metadata block;
   do not include ` + "`" + `+++` + "`" + ` lines in the content you send.
3. **Optimistic concurrency.** Pass the ` + "`" + `checksum` + "`" + ` returned by ` + "`" + `read_chapter` + "`" + `
   as ` + "`" + `if_match` + "`" + `; the write is refused if the file changed in between.
4. **Encoding** is UTF-8. Headings start at ` + "`" + `#` + "`" + `.
5. **No HTML** unless absolutely necessary; prefer Markdown equivalents.

## Images

- Upload images with the ` + "`" + `upload_image` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + `
  field ready to paste into the chapter body.
- Images live in the project's ` + "`" + `images/` + "`" + ` folder (flat, no sub-folders) and are
  referenced relative to the chapter: ` + "`" + `![description](../images/filename.png)` + "`" + `.
- Supported formats: png, jpg, jpeg, gif, webp, svg.

## Example

` + "```" + `markdown
+++
title = "The harbour"
created_at = "2025-01-20T09:00:00Z"
updated_at = "2025-01-20T09:00:00Z"
+++

# The harbour

The boats came in at dawn.

![Harbour at dawn](../images/harbour.jpg)
` + "```" + `
`
