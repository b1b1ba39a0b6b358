package imports

import (
	_ "github.com/sammcj/mcp-fileconv/internal/tools/capabilities"
	_ "github.com/sammcj/mcp-fileconv/internal/tools/convertfile"
	_ "github.com/sammcj/mcp-fileconv/internal/tools/pdf"
	_ "github.com/sammcj/mcp-fileconv/internal/tools/utilities/toolhelp"
)
