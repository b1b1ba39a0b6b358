//go:build !gosseract

package ocr

import "errors"

func detectNative() (Engine, string, error) {
	return nil, "", errors.New("built without the gosseract tag")
}
