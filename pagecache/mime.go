package pagecache

// defaultMimeTypes seeds the MIME-by-extension table, transcribed from the
// original source's mime_map initializer in page.c.
var defaultMimeTypes = map[string]string{
	"asc":   "text/plain",
	"avi":   "video/x-msvideo",
	"bin":   "application/octet-stream",
	"bmp":   "image/bmp",
	"cer":   "application/pkix-cert",
	"crl":   "application/pkix-crl",
	"crt":   "application/x-x509-ca-cert",
	"css":   "text/css",
	"doc":   "application/msword",
	"eot":   "application/vnd.ms-fontobject",
	"eps":   "application/postscript",
	"es5":   "application/javascript",
	"es6":   "application/javascript",
	"gif":   "image/gif",
	"htm":   "text/html",
	"html":  "text/html",
	"ico":   "image/x-icon",
	"jpeg":  "image/jpeg",
	"jpg":   "image/jpeg",
	"js":    "application/javascript",
	"json":  "application/json",
	"mov":   "video/quicktime",
	"mpe":   "video/mpeg",
	"mpeg":  "video/mpeg",
	"mpg":   "video/mpeg",
	"pdf":   "application/pdf",
	"png":   "image/png",
	"ppt":   "application/vnd.ms-powerpoint",
	"ps":    "application/postscript",
	"qt":    "video/quicktime",
	"rb":    "text/plain",
	"rtf":   "application/rtf",
	"sse":   "text/plain",
	"svg":   "image/svg+xml",
	"tif":   "image/tiff",
	"tiff":  "image/tiff",
	"ttf":   "application/font-sfnt",
	"txt":   "text/plain",
	"woff":  "application/font-woff",
	"woff2": "font/woff2",
	"xls":   "application/vnd.ms-excel",
	"xml":   "application/xml",
	"zip":   "application/zip",
}
