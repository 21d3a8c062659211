// Package events defines the typed editor event contract consumed by the
// feedback engine.
//
// Event kinds live in the editor.* namespace:
//
//   - CursorMoved (editor.cursor_moved): the primary cursor moved. Carries
//     the new position, the document line count, the text of the cursor line
//     when the source knows it, and what caused the move.
//   - TextChanged (editor.text_changed): a document was edited. Carries the
//     content changes in the order the editor reported them and, optionally,
//     how the edit changed the indentation of the cursor line.
//   - EditorSwitched (editor.switched): another editor took focus.
//   - DocumentClosed (editor.document_closed): a document was closed; any
//     per-document state can be dropped.
//
// Only keyboard and mouse moves count as user navigation. Moves made by the
// editor itself carry SelectionCommand and are ignored by speed detection.
package events
