package reasoning

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"

	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const (
	maxPromptDocuments  = 3
	maxPromptDates      = 2
	maxPromptLocations  = 2
	maxPromptReferences = 5

	noReferences = "No specific legal provisions retrieved."
)

// ─────────────────────────────────────────────────────────────────────────────
// Templates
// ─────────────────────────────────────────────────────────────────────────────

const casePromptTmpl = `You are a legal expert analyzing a case. Provide a detailed legal analysis applying the relevant laws to the facts.

**Case Facts:**
{{.Facts}}

**Legal Domain:** {{.Domain}}

**Applicable Legal Sections:**
{{range $i, $s := .Sections}}
{{inc $i}}. **{{$s.Act}} Section {{$s.Section}}**: {{$s.Title}}
   Description: {{$s.Description}}
{{- if $s.Punishment}}
   Punishment: {{$s.Punishment}}{{end}}
{{end}}
**Evidence Available:**
{{- if .Witnesses}}
- Witnesses: {{join .Witnesses}}{{end}}
{{- if .Documents}}
- Documents: {{join .Documents}}{{end}}
{{- if .Dates}}
- Dates: {{join .Dates}}{{end}}
{{- if .Locations}}
- Locations: {{join .Locations}}{{end}}


**Analysis Required:**

1. **Elements of the Offense**: Identify which elements of each applicable section are satisfied by the facts.

2. **Application of Law to Facts**: Explain how the facts meet the legal requirements of each section.

3. **Strength of Case**: Assess the strength of the case based on available facts and evidence.

4. **Potential Defenses**: Identify any potential defenses or counterarguments.

5. **Conclusion**: Provide a reasoned conclusion about the applicability of the sections.

Please provide a comprehensive legal analysis in clear, structured paragraphs. Use legal terminology appropriately and cite the relevant sections.`

const caseTemplateTmpl = `# Legal Analysis

**Domain:** {{.Domain}}

## Case Facts
{{.Facts}}

## Applicable Legal Sections
{{range .Sections}}
### {{.Act}} Section {{.Section}}: {{.Title}}
{{- if .Punishment}}
**Punishment:** {{.Punishment}}{{end}}
{{end}}
## Analysis

Based on the facts presented, the following sections may be applicable:
{{range $i, $s := .Sections}}
{{inc $i}}. **{{$s.Act}} Section {{$s.Section}}** ({{$s.Title}}): The facts suggest potential applicability of this section. Further investigation and legal consultation is recommended.
{{end}}
**Note:** This is a template-based analysis. For detailed legal reasoning, configure a reasoning backend.
`

const advisoryPromptTmpl = `You are a senior legal consultant providing pre-litigation advisory services in India.

**ADVISORY DOMAIN**: {{.Domain}}

**CLIENT OBJECTIVE**:
{{.Objective}}

**BACKGROUND DETAILS**:
{{.Background}}

**RELEVANT LEGAL PROVISIONS AND GUIDELINES**:
{{.Context}}

**YOUR TASK**:
Provide comprehensive legal advisory guidance in the following structure:

## 1. UNDERSTANDING THE OBJECTIVE
Clearly restate and analyze the client's objective.

## 2. LEGAL FRAMEWORK
Identify and explain the applicable laws, regulations, and legal provisions relevant to this matter.

## 3. KEY LEGAL CONSIDERATIONS
List and explain the critical legal points the client must understand.

## 4. COMPLIANCE CHECKLIST
Provide a detailed checklist of compliance requirements, documents needed, and steps to be taken.

## 5. RISK ANALYSIS
Identify potential legal risks, pitfalls, and areas of concern.

## 6. RECOMMENDED COURSE OF ACTION
Provide step-by-step recommendations with timelines and priorities.

## 7. DOCUMENTATION REQUIRED
List all documents that should be prepared, obtained, or verified.

## 8. ESTIMATED TIMELINE AND COSTS
Provide realistic estimates for the process.

## 9. PREVENTIVE MEASURES
Suggest measures to avoid future legal complications.

## 10. FINAL ADVISORY OPINION
Summarize your professional opinion and key takeaways.

**IMPORTANT GUIDELINES**:
- Be specific and actionable
- Cite relevant laws and provisions
- Use clear, professional language
- Provide practical, implementable advice
- Highlight critical deadlines and requirements
- Warn about common mistakes to avoid
- Format using markdown with clear headings and bullet points
- Use tables where appropriate for checklists

Generate the comprehensive advisory analysis now:
`

const advisoryTemplateTmpl = `# ADVISORY ANALYSIS - {{upper .Domain}}

## CLIENT OBJECTIVE
{{.Objective}}

## BACKGROUND
{{.Background}}

## ADVISORY GUIDANCE

### Legal Framework
This matter falls under the {{.Domain}} domain. Relevant laws and regulations should be reviewed based on the specific circumstances.

### Key Considerations
1. Verify all legal requirements applicable to this matter
2. Ensure compliance with relevant statutes and regulations
3. Obtain necessary approvals and clearances
4. Maintain proper documentation
5. Seek professional legal opinion for complex aspects

### Compliance Checklist
- [ ] Identify all applicable laws and regulations
- [ ] Gather required documents
- [ ] Verify compliance requirements
- [ ] Obtain necessary registrations/licenses
- [ ] Prepare required agreements/contracts
- [ ] File necessary applications
- [ ] Maintain proper records

### Risk Analysis
**Potential Risks:**
- Non-compliance with legal requirements
- Inadequate documentation
- Missed deadlines
- Regulatory penalties

**Mitigation:**
- Conduct thorough due diligence
- Engage qualified legal professionals
- Maintain comprehensive documentation
- Monitor compliance regularly

### Recommended Actions
1. **Immediate**: Consult with a specialized {{.Domain}} lawyer
2. **Short-term**: Gather all relevant documents and information
3. **Medium-term**: Complete necessary compliance procedures
4. **Long-term**: Establish ongoing compliance mechanisms

### Documentation Required
- Identity and address proofs
- Relevant certificates and registrations
- Financial documents
- Agreements and contracts
- Compliance certificates

### Timeline
The process typically takes 2-8 weeks depending on complexity and specific requirements.

### Final Advisory
This is a preliminary advisory based on the information provided. It is strongly recommended to consult with a qualified legal professional specializing in {{.Domain}} law for detailed guidance specific to your circumstances.

**Note**: This analysis was generated using a fallback template. For comprehensive analysis, configure a reasoning backend.
`

const translationPromptTmpl = `Translate the following text from {{.Language}} to English.
Maintain the original meaning and context, especially for legal terminology.
Only provide the translation, no explanations.

Text to translate:
{{.Text}}`

var funcs = template.FuncMap{
	"inc":   func(i int) int { return i + 1 },
	"join":  func(s []string) string { return strings.Join(s, ", ") },
	"upper": strings.ToUpper,
}

var (
	casePrompt        = template.Must(template.New("case_prompt").Funcs(funcs).Parse(casePromptTmpl))
	caseTemplate      = template.Must(template.New("case_template").Funcs(funcs).Parse(caseTemplateTmpl))
	advisoryPrompt    = template.Must(template.New("advisory_prompt").Funcs(funcs).Parse(advisoryPromptTmpl))
	advisoryTemplate  = template.Must(template.New("advisory_template").Funcs(funcs).Parse(advisoryTemplateTmpl))
	translationPrompt = template.Must(template.New("translation_prompt").Funcs(funcs).Parse(translationPromptTmpl))
)

// ─────────────────────────────────────────────────────────────────────────────
// Template data
// ─────────────────────────────────────────────────────────────────────────────

type caseData struct {
	Facts     string
	Domain    string
	Sections  []legal.SectionRecord
	Witnesses []string
	Documents []string
	Dates     []string
	Locations []string
}

func newCaseData(f legal.CaseFacts) caseData {
	d := caseData{
		Facts:    f.Facts,
		Domain:   f.Classification.Domain,
		Sections: f.Sections.AllSections,
	}
	if d.Domain == "" {
		d.Domain = "Not specified"
	}
	for _, w := range f.Evidence.ConfirmedWitnesses() {
		d.Witnesses = append(d.Witnesses, w.Name)
	}
	for i, doc := range f.Evidence.Documents {
		if i == maxPromptDocuments {
			break
		}
		d.Documents = append(d.Documents, doc.Reference)
	}
	for i, dt := range f.Evidence.Dates {
		if i == maxPromptDates {
			break
		}
		d.Dates = append(d.Dates, dt.Date)
	}
	for i, loc := range f.Evidence.Locations {
		if i == maxPromptLocations {
			break
		}
		d.Locations = append(d.Locations, loc.Location)
	}
	return d
}

type advisoryData struct {
	Domain     string
	Objective  string
	Background string
	Context    string
}

func newAdvisoryData(f legal.AdvisoryFacts) advisoryData {
	return advisoryData{
		Domain:     f.Classification.Domain,
		Objective:  f.Objective,
		Background: f.Background,
		Context:    referenceContext(f.References),
	}
}

// referenceContext numbers up to five references for the advisory prompt.
func referenceContext(refs []legal.RetrievedChunk) string {
	if len(refs) == 0 {
		return noReferences
	}
	if len(refs) > maxPromptReferences {
		refs = refs[:maxPromptReferences]
	}
	parts := make([]string, 0, len(refs))
	for i, r := range refs {
		parts = append(parts, "**Reference "+strconv.Itoa(i+1)+":**\n"+r.Text+"\n")
	}
	return strings.Join(parts, "\n")
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
