package constants

// HeaderSeparatorLength is the length of the header separator line.
const HeaderSeparatorLength = 50

// LineNumberWidth is the zero-padded width of the line number column.
const LineNumberWidth = 4

// ViewerChromeHeight is the number of terminal rows the viewer reserves for header and status lines.
const ViewerChromeHeight = 4

// FilterCharLimit bounds the length of the filter and search inputs.
const FilterCharLimit = 256
