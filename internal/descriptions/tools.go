package descriptions

// Tool descriptions shown to MCP clients

const (
	IngestFolderDescription = `Extract text from every document in an estate or property folder.

**When to use:** Before drafting a proposal, to collect everything the folder's deeds, appraisals, notes and scans say.

**Why it's useful:** Handles text files, PDFs with a text layer and scanned PDFs (through OCR) in one call, keeps document order stable, and reports per-file problems without stopping.

**Examples:**
• "Ingest estates/smith to see what the deed and appraisal contain"
• "Which files in estates/jones could not be read?"

**Result:** JSON with documents (name, path, method), image paths, per-file errors, an error summary and the corpus text. Documents in the corpus are separated by "==== End of Document ====" lines.

**Best practices:** Previously generated proposals in the folder are skipped. A missing OCR toolchain is reported as an error for the whole call.`

	BusinessDatesDescription = `Compute the auction business dates for a run.

**When to use:** When a proposal needs its auction end, contract, advertising start, closing and acceptance deadline dates.

**Rules:**
• Auction end: the first Thursday after today plus the given number of weeks
• Contract: one week after the next Friday
• Advertising start: one week after the next Monday
• Closing: 30 days after the auction end, moved off weekends to the next Monday
• Acceptance deadline: the next Friday

**Result:** JSON object of field name to date, formatted like "January 05, 2024".`

	RenderTemplateDescription = `Fill a proposal template with field values.

**When to use:** After values are known, to produce the final proposal text.

**Behavior:** Every {{name}} token is replaced by its value. Names without a value render as [MISSING:name] and are listed after the text.`

	ServerInfoDescription = `Get server information, available tools and usage guidance.`
)

// Tool is a short catalog entry for the server info tool
type Tool struct {
	Name       string
	Summary    string
	Parameters string
}

// Catalog lists the tools in the order they are registered
var Catalog = []Tool{
	{Name: "proposal_ingest_folder", Summary: "Extract text, images and per-file errors from a folder", Parameters: "folder (required)"},
	{Name: "proposal_business_dates", Summary: "Compute auction business dates", Parameters: "weeks (required), today (YYYY-MM-DD, optional)"},
	{Name: "proposal_render_template", Summary: "Substitute field values into a template", Parameters: "template (required), values (JSON object, required)"},
	{Name: "proposal_server_info", Summary: "Server information and guidance", Parameters: "none"},
}

// UsageGuidance is appended to the server info output
const UsageGuidance = `Typical workflow:
1. proposal_ingest_folder on the property folder
2. Read the corpus and decide the field values
3. proposal_business_dates for the auction timeline
4. proposal_render_template with the template and the values`
