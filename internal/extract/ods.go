package extract

// extractODS collects cell text from text:p and text:span elements.
func extractODS(content []byte, limit int64) (string, map[string]string, error) {
	s, meta, err := odfContent(content, limit, "ODS")
	if err != nil {
		return "", nil, err
	}
	text := joinMatches(
		odfTextP.FindAllStringSubmatch(s, -1),
		odfTextSpan.FindAllStringSubmatch(s, -1),
	)
	return text, meta, nil
}
