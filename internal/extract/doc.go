// Package extract locates the header, main and footer regions of an HTML
// document and collects the URL-bearing references inside each.
//
// The header is the subtree of the first element matching the header
// selector, the footer the subtree of the last element matching the footer
// selector, and main is everything else. References come from single-URL
// attributes (href, src, poster, data by default), srcset candidates and
// url(...) tokens in inline styles.
package extract
