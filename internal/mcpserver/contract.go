package mcpserver

// RecordFormatContract describes the test case record that LLM consumers
// read and write through the tools.
const RecordFormatContract = `# Test Case Record Format

Every test case stored by the backend has this shape.

## Fields

| Field             | Type    | Written by | Rules |
|-------------------|---------|------------|-------|
| ` + "`id`" + `              | integer | backend    | Positive, unique. Shown as ` + "`TC-<id>`" + `. |
| ` + "`feature_name`" + `    | string  | client     | Required, 1 to 255 characters. |
| ` + "`title`" + `           | string  | client     | Required, 1 to 500 characters. |
| ` + "`steps`" + `           | string  | client     | Required, free text, may span lines. |
| ` + "`expected_result`" + ` | string  | client     | Required, free text, may span lines. |
| ` + "`priority`" + `        | enum    | client     | ` + "`Low`, `Medium`, `High`" + `. Default ` + "`Medium`" + `. |
| ` + "`status`" + `          | enum    | client     | ` + "`Draft`, `Ready`, `Automated`" + `. Default ` + "`Draft`" + `. |
| ` + "`created_at`" + `      | string  | backend    | ISO-8601 timestamp. |
| ` + "`updated_at`" + `      | string  | backend    | ISO-8601 timestamp, optional. |

## Rules

1. Leading and trailing whitespace is trimmed from the four text fields
   before validation. A field that is empty after trimming is rejected.
2. Enumerations are case-sensitive: ` + "`high`" + ` is not a priority.
3. Updates always send every client field. ` + "`update_test_case`" + ` fills in
   omitted fields from the current record.
4. Deleting is permanent and requires ` + "`confirm: true`" + `.
5. Search is a case-insensitive substring match on title or feature
   name. Steps and expected result are not searched. Filters combine
   with AND.

## Example

` + "```" + `json
{
  "id": 12,
  "feature_name": "Authentication",
  "title": "Login with valid credentials",
  "steps": "1. Open /login\n2. Enter a valid user\n3. Submit",
  "expected_result": "The dashboard is shown",
  "priority": "High",
  "status": "Ready",
  "created_at": "2025-03-07T10:00:00Z"
}
` + "```" + `
`
