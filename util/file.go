package util

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
)

// OpenImage 打开本地图片
func OpenImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	img, _, err := image.Decode(file)
	return img, err
}

// OpenGrayImage 以灰度方式打开本地图片
func OpenGrayImage(path string) (*image.Gray, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// ToGray 转为单通道灰度图，原点移到 (0,0)
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), dropAlpha(img), b.Min, draw.Src)
	return dst
}

// ToRGBA 转为 RGBA，原点移到 (0,0)
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), dropAlpha(img), b.Min, draw.Src)
	return dst
}

// dropAlpha 非预乘图片保留存储的 RGB，alpha 置为不透明，与按三通道读取一致
func dropAlpha(img image.Image) image.Image {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.NRGBA:
		dst := image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			si, di := src.PixOffset(b.Min.X, y), dst.PixOffset(b.Min.X, y)
			copy(dst.Pix[di:di+4*b.Dx()], src.Pix[si:si+4*b.Dx()])
		}
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 0xff
		}
		return dst
	case *image.NRGBA64:
		dst := image.NewNRGBA64(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			si, di := src.PixOffset(b.Min.X, y), dst.PixOffset(b.Min.X, y)
			copy(dst.Pix[di:di+8*b.Dx()], src.Pix[si:si+8*b.Dx()])
		}
		for i := 6; i < len(dst.Pix); i += 8 {
			dst.Pix[i], dst.Pix[i+1] = 0xff, 0xff
		}
		return dst
	}
	return img
}

// SavePNG 把图片编码为 PNG 写入 path
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("png encode %s: %w", path, err)
	}
	return f.Close()
}

// ListImages 列出目录下指定扩展名的文件，按文件名字典序排序
func ListImages(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(e.Name(), ext) {
				names = append(names, e.Name())
				break
			}
		}
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}
