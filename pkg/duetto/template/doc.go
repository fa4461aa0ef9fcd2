/*
Package template expands ${field} placeholders against an event's fields.

Placeholders name a key from event.Event.Fields ("title", "payload.form_type",
"enrichment.ai_summary"), may give a fallback, and may pipe the value
through filters:

	${ticker}
	${company:-unknown}
	${title|upper}
	${summary|json}

Filters are applied left to right:

	upper     upper-cases the value
	lower     lower-cases the value
	json      encodes the value as a JSON literal (quoted string, number, ...)
	urlquery  escapes the value for a URL query component
	trim      trims surrounding whitespace

The webhook channel uses templates for custom request bodies, and the MQTT
channel uses them to build topics:

	exp := template.NewExpander(template.WithMissingAction(template.MissingEmpty))
	topic, err := exp.Expand("alerts/${source}/${priority|lower}", evt.Fields())

Expander is safe for concurrent use after construction.
*/
package template
