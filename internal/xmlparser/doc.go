// Package xmlparser reads console alarm configuration XML back into an
// alarm tree, the inverse of the XML serializer. Filters come back as raw
// strings, the console syntax is not translated into the structured form.
package xmlparser
